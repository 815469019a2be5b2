package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "bunko",
		Usage: "Library catalog assistant with retrieval-augmented recommendations",
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			historyCommand(),
			clearCommand(),
			rebuildIndexCommand(),
			seedCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
