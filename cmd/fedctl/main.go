// fedctl inspects stored submission archives and drives federation
// operations from the command line. It reads the same environment as the
// server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dtroode/journal-exchange/internal/app"
	"github.com/dtroode/journal-exchange/internal/config"
	"github.com/dtroode/journal-exchange/internal/logger"
)

const usage = `usage: fedctl [flags] <command> [args]

commands:
  ls <archive-id> [path]              list a folder inside an archive
  cat <archive-id> <path>             print a file stored in an archive
  pack <file-or-directory>            store a file or directory tree as a new archive
  rm <archive-id>                     delete an archive
  token export <submission-id>        mint an export authorization token
  export <submission-id> <remote-url> push a submission to a peer instance

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "fedctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("fedctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&opts.json, "json", false, "print results as JSON")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level to stderr")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	level := int(slog.LevelWarn)
	if opts.verbose {
		level = int(slog.LevelDebug)
	}
	lg := logger.NewWithFormat(stderr, level, logger.FormatText)

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()

	c := &commands{
		archives: a.Archives,
		tokens:   a.Tokens,
		exporter: a.Federation,
		out:      stdout,
		opts:     opts,
	}
	return c.dispatch(ctx, rest)
}
