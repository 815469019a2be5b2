package assistant

import (
	"sync"

	"github.com/m-mizutani/bunko/pkg/model"
	"google.golang.org/genai"
)

// maxMemoryContents bounds how much prior conversation is replayed to the
// model per turn
const maxMemoryContents = 20

// threadMemory holds in-process conversation state per thread. It is a
// working buffer, not a durable record; the conversation store keeps those.
type threadMemory struct {
	mu      sync.Mutex
	threads map[model.ThreadID][]*genai.Content
}

func newThreadMemory() *threadMemory {
	return &threadMemory{
		threads: make(map[model.ThreadID][]*genai.Content),
	}
}

// history returns a copy of the thread's recent contents
func (m *threadMemory) history(thread model.ThreadID) []*genai.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	contents := m.threads[thread]
	out := make([]*genai.Content, len(contents))
	copy(out, contents)
	return out
}

// append records contents onto a thread, trimming the oldest beyond the cap
func (m *threadMemory) append(thread model.ThreadID, contents ...*genai.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := append(m.threads[thread], contents...)
	if len(merged) > maxMemoryContents {
		merged = merged[len(merged)-maxMemoryContents:]
	}
	m.threads[thread] = merged
}

// clear drops all remembered state for a thread
func (m *threadMemory) clear(thread model.ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, thread)
}
