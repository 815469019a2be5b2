package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/bunko/pkg/usecase/assistant"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, userFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the assistant a single question",
		ArgsUsage: "<message>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" {
				return goerr.New("a message is required")
			}

			ctx = cfg.loggerContext(ctx)

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			resp := rt.engine.Respond(ctx, assistant.RespondInput{
				UserID:   cfg.userID,
				Message:  message,
				Language: cfg.language,
			})
			printResponse(c.Root().Writer, resp)
			return nil
		},
	}
}
