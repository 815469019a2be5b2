package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/bunko/pkg/adapter"
	"github.com/m-mizutani/bunko/pkg/index"
	"github.com/m-mizutani/bunko/pkg/repository"
	"github.com/m-mizutani/bunko/pkg/tool"
	"github.com/m-mizutani/bunko/pkg/usecase/assistant"
	"github.com/m-mizutani/bunko/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	dbPath    string
	indexPath string
	infoPath  string
	logLevel  string

	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	userID   int64
	language string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db-path",
			Aliases:     []string{"d"},
			Usage:       "Path to the SQLite database file",
			Value:       "bunko.db",
			Sources:     cli.EnvVars("BUNKO_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "index-path",
			Usage:       "Path to the document index snapshot",
			Value:       "bunko-index.json",
			Sources:     cli.EnvVars("BUNKO_INDEX_PATH"),
			Destination: &cfg.indexPath,
		},
		&cli.StringFlag{
			Name:        "library-info",
			Usage:       "Path to a YAML file describing the library (hours, contact, policies)",
			Sources:     cli.EnvVars("BUNKO_LIBRARY_INFO"),
			Destination: &cfg.infoPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("BUNKO_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for Gemini configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Sources:     cli.EnvVars("BUNKO_GEMINI_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Sources:     cli.EnvVars("BUNKO_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// userFlags returns flags identifying the conversation owner
func userFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "ID of the user the conversation belongs to",
			Value:       1,
			Sources:     cli.EnvVars("BUNKO_USER_ID"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "language",
			Aliases:     []string{"l"},
			Usage:       "Response language (en, fr, ar)",
			Value:       "en",
			Sources:     cli.EnvVars("BUNKO_LANGUAGE"),
			Destination: &cfg.language,
		},
	}
}

// loggerContext installs a configured logger into the context
func (cfg *config) loggerContext(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newStore opens the SQLite store
func (cfg *config) newStore() (*repository.Store, error) {
	if cfg.dbPath == "" {
		return nil, goerr.New("db-path is required")
	}
	return repository.NewStore(cfg.dbPath)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.generativeModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.generativeModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newLibraryInfo loads library details, falling back to defaults when no
// file is configured
func (cfg *config) newLibraryInfo() (*tool.LibraryInfo, error) {
	if cfg.infoPath == "" {
		return tool.DefaultLibraryInfo(), nil
	}
	return tool.LoadLibraryInfo(cfg.infoPath)
}

// runtime bundles the wired application: store, index, synchronizer and
// conversation engine
type runtime struct {
	store  *repository.Store
	index  *index.Index
	sync   *index.Synchronizer
	engine *assistant.Engine

	indexPath string
	stopSync  context.CancelFunc
}

// newRuntime wires all components. The index is restored from its snapshot
// when possible and rebuilt from the catalog otherwise, then kept converged
// by the synchronizer for the life of the process.
func (cfg *config) newRuntime(ctx context.Context) (*runtime, error) {
	store, err := cfg.newStore()
	if err != nil {
		return nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}

	info, err := cfg.newLibraryInfo()
	if err != nil {
		store.Close()
		return nil, err
	}

	idx := index.New(gemini)
	if !idx.LoadSnapshot(ctx, cfg.indexPath) {
		if err := idx.Rebuild(ctx, store); err != nil {
			store.Close()
			return nil, goerr.Wrap(err, "failed to build document index")
		}
	}

	syncer := index.NewSynchronizer(idx, store)
	syncCtx, stopSync := context.WithCancel(ctx)
	go syncer.Run(syncCtx)

	registry := tool.New(store, store, store, idx, info, tool.WithSynchronizer(syncer))
	engine := assistant.New(gemini, registry, store, store, store)

	return &runtime{
		store:     store,
		index:     idx,
		sync:      syncer,
		engine:    engine,
		indexPath: cfg.indexPath,
		stopSync:  stopSync,
	}, nil
}

// close flushes outstanding index work, saves the snapshot and releases the
// store
func (r *runtime) close(ctx context.Context) {
	r.stopSync()
	r.sync.Flush(ctx)
	if err := r.index.SaveSnapshot(r.indexPath); err != nil {
		logging.From(ctx).Warn("failed to save index snapshot", "path", r.indexPath, "error", err)
	}
	if err := r.store.Close(); err != nil {
		logging.From(ctx).Warn("failed to close store", "error", err)
	}
}
