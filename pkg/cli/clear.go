package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func clearCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, userFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete a user's conversation history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ClearTurns(ctx, cfg.userID)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Cleared %d turn(s) for user %d\n", n, cfg.userID)
			return nil
		},
	}
}
