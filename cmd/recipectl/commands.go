package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sakif/recipe-share/internal/config"
	"github.com/sakif/recipe-share/internal/importer"
	sqliteRepo "github.com/sakif/recipe-share/internal/repository/sqlite"
	"github.com/sakif/recipe-share/internal/server"
	"github.com/sakif/recipe-share/internal/service"
)

// env is what every command needs: the config, a logger on stderr and the
// database. Callers must call close.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	db, err := server.OpenDB(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

func (e *env) close() {
	e.db.Close()
}

// newImportCommand groups the catalog imports.
func newImportCommand() *cli.Command {
	fileFlag := func(def string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "CSV file without a header",
			Value:   def,
		}
	}

	return &cli.Command{
		Name:  "import",
		Usage: "Load catalog data from CSV",
		Subcommands: []*cli.Command{
			{
				Name:  "ingredients",
				Usage: "Import name,unit rows (get-or-create)",
				Flags: []cli.Flag{fileFlag("data/ingredients.csv")},
				Action: func(c *cli.Context) error {
					items, err := importer.ReadIngredientsFile(c.String("file"))
					if err != nil {
						return err
					}

					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()

					res, err := service.NewIngredientService(e.db, e.logger).Import(c.Context, items)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "ingredients: %d created, %d already present\n", res.Created, res.Existing)
					return nil
				},
			},
			{
				Name:  "tags",
				Usage: "Import name,slug rows (get-or-create on slug)",
				Flags: []cli.Flag{fileFlag("data/tags.csv")},
				Action: func(c *cli.Context) error {
					tags, err := importer.ReadTagsFile(c.String("file"))
					if err != nil {
						return err
					}

					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()

					res, err := service.NewTagService(e.db, e.logger).Import(c.Context, tags)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "tags: %d created, %d already present\n", res.Created, res.Existing)
					return nil
				},
			},
		},
	}
}

func newShoppingListCommand() *cli.Command {
	return &cli.Command{
		Name:  "shopping-list",
		Usage: "Print a user's aggregated shopping list",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Usage: "user id", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			list, err := service.NewShoppingService(e.db, e.db, e.logger).Build(c.Context, c.Int64("user"))
			if err != nil {
				return err
			}
			_, err = list.WriteTo(c.App.Writer)
			return err
		},
	}
}

func newShortLinkCommand() *cli.Command {
	return &cli.Command{
		Name:  "short-link",
		Usage: "Issue (or look up) a recipe's short link",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "recipe", Aliases: []string{"r"}, Usage: "recipe id", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			links := service.NewShortLinkService(e.db, e.cfg.Server.BaseURL, e.logger)
			link, err := links.Issue(c.Context, c.Int64("recipe"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, links.URL(link.Token))
			return nil
		},
	}
}
