package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

var errNoDatabase = errors.New("no database: set DATABASE_URL or pass --database-url")

// connect opens a small pool and a Service over it.
func connect(c *cli.Context, opts core.Options) (*core.Service, func(), error) {
	dsn := c.String("database-url")
	if dsn == "" {
		return nil, nil, errNoDatabase
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	svc := core.NewService(pool, core.NewCopyLimiter(1, 0), opts)
	return svc, pool.Close, nil
}

func runImport(c *cli.Context) error {
	in, name, err := openInput(c.Path("file"))
	if err != nil {
		return err
	}
	defer in.Close()

	body, codec, err := inputReader(in, name, c.String("compress"))
	if err != nil {
		return err
	}
	defer body.Close()

	svc, closeDB, err := connect(c, core.Options{Copy: core.CopyOptions{
		StrictTerminator: c.Bool("strict-terminator"),
		MaxLineBytes:     c.Int("max-line-bytes"),
	}})
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := core.ContextWithSource(c.Context, "cli:"+name)
	sess, err := svc.Import(ctx, core.ImportRequest{
		Table:   c.String("table"),
		Columns: core.ParseColumnList(c.String("columns")),
		Body:    body,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "imported %d rows into %s (%d bytes, %s) in %s\n",
		sess.Rows, sess.Table, sess.Bytes, codec, sess.Duration)
	return nil
}

func runExport(c *cli.Context) error {
	path := c.Path("file")
	codec, err := outputCodec(path, c.String("compress"))
	if err != nil {
		return err
	}

	svc, closeDB, err := connect(c, core.Options{})
	if err != nil {
		return err
	}
	defer closeDB()

	out, finish, err := openOutput(path)
	if err != nil {
		return err
	}
	zw, err := compress.NewWriter(out, codec)
	if err != nil {
		finish(err)
		return err
	}

	ctx := core.ContextWithSource(c.Context, "cli")
	sess, err := svc.Export(ctx, core.ExportRequest{
		Table:   c.String("table"),
		Columns: core.ParseColumnList(c.String("columns")),
	}, zw)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err := finish(err); err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "exported %d rows from %s (%d bytes, checksum %s)\n",
		sess.Rows, sess.Table, sess.Bytes, sess.Checksum)
	return nil
}

func runColumns(c *cli.Context) error {
	svc, closeDB, err := connect(c, core.Options{})
	if err != nil {
		return err
	}
	defer closeDB()

	cols, err := svc.Columns(c.Context, c.String("table"), core.ParseColumnList(c.String("columns"))...)
	if err != nil {
		return err
	}
	printColumns(c.App.Writer, cols)
	return nil
}

func printColumns(w io.Writer, cols []core.ColumnInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTYPE\tOID\tNULLABLE")
	for _, col := range cols {
		typeName := col.TypeName
		if col.Enum {
			typeName += " (enum)"
		}
		nullable := "yes"
		if col.NotNull {
			nullable = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", col.Position, col.Name, typeName, col.TypeID, nullable)
	}
	tw.Flush()
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, string, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, filepath.Base(path), nil
}

// inputReader decompresses in. "auto" sniffs the content.
func inputReader(in io.Reader, name, mode string) (io.ReadCloser, compress.Type, error) {
	if mode == "" || mode == "auto" {
		return compress.OpenReader(in)
	}
	codec, err := compress.ParseType(mode)
	if err != nil {
		return nil, compress.None, err
	}
	rc, err := compress.NewReader(in, codec)
	if err != nil {
		return nil, codec, fmt.Errorf("open %s as %s: %w", name, codec, err)
	}
	return rc, codec, nil
}

// outputCodec resolves the export codec. "auto" follows the file extension
// and writes stdout uncompressed.
func outputCodec(path, mode string) (compress.Type, error) {
	if mode == "" || mode == "auto" {
		codec, _ := compress.FromExtension(path)
		return codec, nil
	}
	return compress.ParseType(mode)
}

// openOutput returns a writer for path, or stdout for "" and "-". File
// output goes to a temporary sibling; finish(nil) renames it into place and
// finish(err) removes it, so a failed export never leaves a partial file
// under the real name. finish returns the first error seen.
func openOutput(path string) (io.Writer, func(error) error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func(err error) error { return err }, nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, nil, err
	}
	finish := func(err error) error {
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Rename(tmp.Name(), path)
		}
		if err != nil {
			os.Remove(tmp.Name())
		}
		return err
	}
	return tmp, finish, nil
}
