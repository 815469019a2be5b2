package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := globalFlags(&cfg)
	flags = append(flags, userFlags(&cfg)...)
	flags = append(flags, &cli.IntFlag{
		Name:        "limit",
		Aliases:     []string{"n"},
		Usage:       "Max turns to show",
		Value:       20,
		Destination: &limit,
	})

	return &cli.Command{
		Name:  "history",
		Usage: "Show a user's conversation history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			defer store.Close()

			turns, err := store.ListTurns(ctx, cfg.userID, int(limit))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(turns) == 0 {
				fmt.Fprintf(w, "No conversation history for user %d\n", cfg.userID)
				return nil
			}

			for _, turn := range turns {
				fmt.Fprintf(w, "[%s] user: %s\n", turn.CreatedAt.Format("2006-01-02 15:04"), turn.Message)
				fmt.Fprintf(w, "           assistant: %s\n", turn.Answer)
				for _, b := range turn.RecommendedBooks {
					fmt.Fprintf(w, "           book: [#%d] %s\n", b.ID, b.Title)
				}
				for _, a := range turn.RecommendedArticles {
					fmt.Fprintf(w, "           article: [#%d] %s\n", a.ID, a.Title)
				}
			}
			return nil
		},
	}
}
