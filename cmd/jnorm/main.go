// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Program jnorm converts a nested JSON document into flat relational tables,
// one per distinct path in the document, linked by integer keys.
//
// Usage:
//
//	jnorm [flags]
//
// By default the source is read from example/people.json and each table is
// written as a JSON Lines file in example/output. Use -sink to write to a
// database instead, and -config to read settings from a YAML file. Flags
// given on the command line override settings from the file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/creachadair/jnorm"
	"github.com/creachadair/jnorm/internal/config"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// settings are the command-line options that are not part of a Config.
type settings struct {
	configPath  string
	verbose     bool
	veryVerbose bool
	watch       bool
}

func (s *settings) level() slog.Level {
	switch {
	case s.veryVerbose:
		return slog.LevelDebug
	case s.verbose:
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

func newFlagSet(cfg *config.Config, s *settings) *flag.FlagSet {
	fs := flag.NewFlagSet("jnorm", flag.ContinueOnError)
	fs.StringVar(&s.configPath, "config", "", "Read settings from this YAML file")
	fs.BoolVar(&s.verbose, "v", false, "Log progress")
	fs.BoolVar(&s.verbose, "verbose", false, "Log progress (same as -v)")
	fs.BoolVar(&s.veryVerbose, "vv", false, "Log progress and every row")
	fs.BoolVar(&s.veryVerbose, "very-verbose", false, "Log progress and every row (same as -vv)")
	fs.BoolVar(&s.watch, "watch", false, "Rerun whenever the source file changes")

	fs.StringVar(&cfg.Source, "source", cfg.Source, "Source JSON file")
	fs.StringVar(&cfg.Target, "target", cfg.Target, "Output directory (dir and badger sinks)")
	fs.StringVar(&cfg.Sink, "sink", cfg.Sink, "Output sink: dir, sqlite, mysql, postgres, mongo, badger")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Database connection string")
	fs.StringVar(&cfg.Database, "database", cfg.Database, "Database name (mongo sink)")
	fs.StringVar(&cfg.Codec, "codec", cfg.Codec, "Output file compression: none, zstd, s2, lz4")
	fs.BoolVar(&cfg.Atomic, "atomic", cfg.Atomic, "Replace output files only if the run succeeds")
	fs.BoolVar(&cfg.Lines, "lines", cfg.Lines, "Accept a sequence of top-level values (JSON Lines)")
	fs.BoolVar(&cfg.ExactNumbers, "exact-numbers", cfg.ExactNumbers, "Preserve the literal text of numbers")
	fs.BoolVar(&cfg.AllowComments, "comments", cfg.AllowComments, "Accept comments in the source")
	fs.StringVar(&cfg.Duplicates, "duplicates", cfg.Duplicates, "Duplicate key policy: error, last")
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, "Maximum nesting depth (0 for no limit)")
	fs.StringVar(&cfg.Separator, "separator", cfg.Separator, "Separator for table names")
	fs.StringVar(&cfg.IDSuffix, "id-suffix", cfg.IDSuffix, "Suffix for key column names")
	fs.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Delay before a watched rerun")
	return fs
}

// parseArgs parses command-line arguments. If a config file is named, its
// settings are loaded first and the arguments are applied on top of them.
func parseArgs(args []string) (*config.Config, *settings, error) {
	cfg, s := config.Default(), new(settings)
	if err := newFlagSet(cfg, s).Parse(args); err != nil {
		return nil, nil, err
	}
	if s.configPath != "" {
		loaded, err := config.Load(s.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg, s = loaded, new(settings)
		if err := newFlagSet(cfg, s).Parse(args); err != nil {
			return nil, nil, err
		}
	}
	return cfg, s, cfg.Validate()
}

func main() {
	cfg, s, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "jnorm: %v\n", err)
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: s.level()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runOnce(ctx, cfg, log, os.Stdout); err != nil {
		log.Error("run failed", "err", err)
		if !s.watch {
			os.Exit(1)
		}
	}
	if s.watch {
		if err := watch(ctx, cfg, log, os.Stdout); err != nil {
			log.Error("watch failed", "err", err)
			os.Exit(1)
		}
	}
}

// runOnce normalizes the source selected by cfg and prints a summary to out.
func runOnce(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	log = log.With("run", uuid.NewString())

	fi, err := os.Stat(cfg.Source)
	if err != nil {
		return err
	} else if !fi.Mode().IsRegular() {
		return fmt.Errorf("source %q is not a file", cfg.Source)
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = log

	f, err := os.Open(cfg.Source)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := cfg.OpenSink(ctx)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", cfg.Sink, err)
	}
	log.Info("start", "source", cfg.Source, "sink", cfg.Sink, "root", opts.Name)
	sum, err := jnorm.Run(ctx, f, s, opts)
	if err != nil {
		return err
	}
	printSummary(out, sum)
	log.Info("done", "tables", len(sum.Tables), "rows", sum.Total)
	return nil
}

// printSummary writes a table of the rows written per table to w.
func printSummary(w io.Writer, sum jnorm.Summary) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "table\trecords\tchecksum\t")
	for _, t := range sum.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%016x\t\n", t.Name, humanize.Comma(t.Rows), t.Digest)
	}
	fmt.Fprintf(tw, "total\t%s\t\t\n", humanize.Comma(sum.Total))
	tw.Flush()
}
