package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/bunko/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Books []struct {
		Title           string   `yaml:"title"`
		Authors         []string `yaml:"authors"`
		Categories      []string `yaml:"categories"`
		Description     string   `yaml:"description"`
		Summary         string   `yaml:"summary"`
		Rating          float64  `yaml:"rating"`
		BorrowCount     int64    `yaml:"borrow_count"`
		TotalCopies     int64    `yaml:"total_copies"`
		AvailableCopies int64    `yaml:"available_copies"`
		Featured        bool     `yaml:"featured"`
		CoverURL        string   `yaml:"cover_url"`
	} `yaml:"books"`
	Articles []struct {
		Slug          string   `yaml:"slug"`
		Title         string   `yaml:"title"`
		Author        string   `yaml:"author"`
		Category      string   `yaml:"category"`
		Summary       string   `yaml:"summary"`
		Tags          []string `yaml:"tags"`
		PDFURL        string   `yaml:"pdf_url"`
		CoverImageURL string   `yaml:"cover_image_url"`
		ReadTime      int64    `yaml:"read_time"`
		Views         int64    `yaml:"views"`
		Likes         int64    `yaml:"likes"`
	} `yaml:"articles"`
}

func seedCommand() *cli.Command {
	var (
		cfg  config
		file string
	)

	flags := globalFlags(&cfg)
	flags = append(flags, &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "YAML file with books and articles to load",
		Required:    true,
		Destination: &file,
	})

	return &cli.Command{
		Name:  "seed",
		Usage: "Load catalog records from a YAML file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			data, err := os.ReadFile(file)
			if err != nil {
				return goerr.Wrap(err, "failed to read seed file", goerr.V("file", file))
			}
			var seed seedFile
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return goerr.Wrap(err, "failed to parse seed file", goerr.V("file", file))
			}

			store, err := cfg.newStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, b := range seed.Books {
				book := &model.Book{
					Title:           b.Title,
					Authors:         b.Authors,
					Categories:      b.Categories,
					Description:     b.Description,
					Summary:         b.Summary,
					Rating:          b.Rating,
					BorrowCount:     b.BorrowCount,
					TotalCopies:     b.TotalCopies,
					AvailableCopies: b.AvailableCopies,
					Featured:        b.Featured,
					CoverURL:        b.CoverURL,
				}
				if err := store.PutBook(ctx, book); err != nil {
					return goerr.Wrap(err, "failed to store book", goerr.V("title", b.Title))
				}
			}

			for _, a := range seed.Articles {
				article := &model.Article{
					Slug:          a.Slug,
					Title:         a.Title,
					Author:        a.Author,
					Category:      a.Category,
					Summary:       a.Summary,
					Tags:          a.Tags,
					PDFURL:        a.PDFURL,
					CoverImageURL: a.CoverImageURL,
					ReadTime:      a.ReadTime,
					Views:         a.Views,
					Likes:         a.Likes,
				}
				if err := store.PutArticle(ctx, article); err != nil {
					return goerr.Wrap(err, "failed to store article", goerr.V("slug", a.Slug))
				}
			}

			fmt.Fprintf(c.Root().Writer, "Loaded %d book(s) and %d article(s)\n",
				len(seed.Books), len(seed.Articles))
			fmt.Fprintf(c.Root().Writer, "Run 'bunko rebuild-index' to refresh the document index\n")
			return nil
		},
	}
}
