package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/bunko/pkg/usecase/assistant"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, userFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with the library assistant",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			rt, err := cfg.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			w := c.Root().Writer
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprintf(w, "Chat started. Type 'exit' to quit.\n")

			for {
				fmt.Fprintf(w, "> ")
				if !scanner.Scan() {
					break
				}

				message := scanner.Text()
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				resp := rt.engine.Respond(ctx, assistant.RespondInput{
					UserID:   cfg.userID,
					Message:  message,
					Language: cfg.language,
				})
				printResponse(w, resp)
			}

			fmt.Fprintf(w, "\nBye!\n")
			return nil
		},
	}
}

func printResponse(w io.Writer, resp *model.GeneratedResponse) {
	fmt.Fprintf(w, "%s\n", resp.Answer)

	if len(resp.RecommendedBooks) > 0 {
		fmt.Fprintf(w, "\nRecommended books:\n")
		for _, b := range resp.RecommendedBooks {
			fmt.Fprintf(w, "  [#%d] %s by %s (rating %.1f, %d available)\n",
				b.ID, b.Title, b.Author, b.Rating, b.AvailableCopies)
		}
	}
	if len(resp.RecommendedArticles) > 0 {
		fmt.Fprintf(w, "\nRecommended articles:\n")
		for _, a := range resp.RecommendedArticles {
			fmt.Fprintf(w, "  [#%d] %s by %s (%d min read)\n", a.ID, a.Title, a.Author, a.ReadTime)
		}
	}
	if resp.FollowUpQuestion != "" {
		fmt.Fprintf(w, "\n%s\n", resp.FollowUpQuestion)
	}
}
