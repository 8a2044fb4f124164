// Command recipectl administers a recipe-share database: catalog imports,
// shopping-list reports and short links.
package main

import (
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:   "recipectl",
		Writer: w,
		Usage:  "Administer the recipe-share database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file (defaults to $CONFIG_PATH)",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			newImportCommand(),
			newShoppingListCommand(),
			newShortLinkCommand(),
		},
	}
}
