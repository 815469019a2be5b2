package tool

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

// LibraryInfo describes the library itself: opening hours, contact details
// and lending policies. It is static configuration, loaded once at startup.
type LibraryInfo struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Address     string            `yaml:"address"`
	Phone       string            `yaml:"phone"`
	Email       string            `yaml:"email"`
	Website     string            `yaml:"website"`
	Hours       map[string]string `yaml:"hours"`
	Policies    []string          `yaml:"policies"`
}

// DefaultLibraryInfo returns the built-in fallback used when no info file
// is configured
func DefaultLibraryInfo() *LibraryInfo {
	return &LibraryInfo{
		Name:        "Community Library",
		Description: "A public library offering books and articles across all genres.",
		Hours: map[string]string{
			"Monday-Friday": "09:00-20:00",
			"Saturday":      "10:00-18:00",
			"Sunday":        "Closed",
		},
		Policies: []string{
			"Borrow requests are reviewed by a librarian before approval.",
			"Borrowed books are due back within 14 days.",
			"A user can hold at most 5 approved books at a time.",
		},
	}
}

// LoadLibraryInfo reads library details from a YAML file
func LoadLibraryInfo(path string) (*LibraryInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read library info", goerr.V("path", path))
	}
	var info LibraryInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, goerr.Wrap(err, "failed to parse library info", goerr.V("path", path))
	}
	return &info, nil
}

func declLibraryInfo() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        string(NameLibraryInfo),
		Description: "Get general information about the library: opening hours, location, contact details and lending policies.",
	}
}

func (r *Registry) libraryInfo(ctx context.Context) (*model.ToolResult, error) {
	info := r.info

	var sb strings.Builder
	sb.WriteString(info.Name)
	if info.Description != "" {
		sb.WriteString(": " + info.Description)
	}
	sb.WriteString("\n")

	if info.Address != "" {
		sb.WriteString(fmt.Sprintf("Address: %s\n", info.Address))
	}
	if info.Phone != "" {
		sb.WriteString(fmt.Sprintf("Phone: %s\n", info.Phone))
	}
	if info.Email != "" {
		sb.WriteString(fmt.Sprintf("Email: %s\n", info.Email))
	}
	if info.Website != "" {
		sb.WriteString(fmt.Sprintf("Website: %s\n", info.Website))
	}
	if len(info.Hours) > 0 {
		sb.WriteString("Opening hours:\n")
		for _, day := range sortedHourKeys(info.Hours) {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", day, info.Hours[day]))
		}
	}
	if len(info.Policies) > 0 {
		sb.WriteString("Policies:\n")
		for _, policy := range info.Policies {
			sb.WriteString(fmt.Sprintf("- %s\n", policy))
		}
	}
	return &model.ToolResult{Text: strings.TrimRight(sb.String(), "\n")}, nil
}

func sortedHourKeys(hours map[string]string) []string {
	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
