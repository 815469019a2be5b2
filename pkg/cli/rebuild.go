package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/bunko/pkg/index"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func rebuildIndexCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "rebuild-index",
		Usage: "Re-embed the whole catalog and replace the index snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			defer store.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			idx := index.New(gemini)
			if err := idx.Rebuild(ctx, store); err != nil {
				return goerr.Wrap(err, "failed to rebuild index")
			}
			if err := idx.SaveSnapshot(cfg.indexPath); err != nil {
				return goerr.Wrap(err, "failed to save index snapshot")
			}

			fmt.Fprintf(c.Root().Writer, "Indexed %d document(s) to %s\n", idx.Len(), cfg.indexPath)
			return nil
		},
	}
}
