// Command jsonlcopy imports JSON Lines into PostgreSQL tables and exports
// tables as JSON Lines.
//
//	jsonlcopy import --table public.items --file items.jsonl.gz
//	jsonlcopy export --table public.items --columns id,name > items.jsonl
//	jsonlcopy columns --table public.items
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/JonMunkholm/jsonlcopy/internal/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is fine; the environment may already carry DATABASE_URL.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jsonlcopy:", core.FormatUserError(err))
		slog.Debug("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	tableFlag := &cli.StringFlag{
		Name:     "table",
		Aliases:  []string{"t"},
		Usage:    "target table, optionally schema-qualified",
		Required: true,
	}
	columnsFlag := &cli.StringFlag{
		Name:    "columns",
		Aliases: []string{"c"},
		Usage:   "comma-separated column subset (table order is kept)",
	}
	fileFlag := &cli.PathFlag{
		Name:      "file",
		Aliases:   []string{"f"},
		Usage:     "input or output file; stdin/stdout when omitted",
		TakesFile: true,
	}
	compressFlag := &cli.StringFlag{
		Name:  "compress",
		Usage: "auto, none, gzip, zstd or lz4",
		Value: "auto",
	}

	return &cli.App{
		Name:  "jsonlcopy",
		Usage: "copy JSON Lines in and out of PostgreSQL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				EnvVars: []string{"DATABASE_URL", "DB_URL"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				Value:   "text",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			// stdout may be carrying an export.
			logging.SetupWriter(os.Stderr, c.String("log-level"), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "import",
				Aliases: []string{"i"},
				Usage:   "load JSON Lines into a table in one transaction",
				Flags: []cli.Flag{
					tableFlag, columnsFlag, fileFlag, compressFlag,
					&cli.BoolFlag{
						Name:  "strict-terminator",
						Usage: "drop a final line without a trailing newline",
					},
					&cli.IntFlag{
						Name:  "max-line-bytes",
						Usage: "reject lines longer than this (0 = unlimited)",
					},
				},
				Action: runImport,
			},
			{
				Name:    "export",
				Aliases: []string{"e"},
				Usage:   "write a table as JSON Lines",
				Flags:   []cli.Flag{tableFlag, columnsFlag, fileFlag, compressFlag},
				Action:  runExport,
			},
			{
				Name:   "columns",
				Usage:  "list the columns a copy would use",
				Flags:  []cli.Flag{tableFlag, columnsFlag},
				Action: runColumns,
			},
			{
				Name:  "formats",
				Usage: "list registered copy formats",
				Action: func(c *cli.Context) error {
					for _, name := range core.Formats() {
						fmt.Fprintln(c.App.Writer, name)
					}
					return nil
				},
			},
		},
	}
}
