// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package config defines the run configuration of the jnorm command.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/jnorm"
	"github.com/creachadair/jnorm/sink"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Config is the configuration for a run. It can be loaded from a YAML file,
// and individual settings overridden by command-line flags.
type Config struct {
	Source string `yaml:"source"` // input JSON file
	Target string `yaml:"target"` // output directory, for the dir and badger sinks

	Sink     string `yaml:"sink"`     // dir, sqlite, mysql, postgres, mongo, badger
	DSN      string `yaml:"dsn"`      // connection string, for database sinks
	Database string `yaml:"database"` // database name, for the mongo sink
	Codec    string `yaml:"codec"`    // none, zstd, s2, lz4
	Atomic   bool   `yaml:"atomic"`   // replace output files atomically

	Lines         bool   `yaml:"lines"`          // accept multiple top-level values
	ExactNumbers  bool   `yaml:"exact_numbers"`  // preserve number literals
	Duplicates    string `yaml:"duplicates"`     // error, last
	MaxDepth      int    `yaml:"max_depth"`      // 0 means unlimited
	AllowComments bool   `yaml:"allow_comments"` // accept JSON with comments
	Separator     string `yaml:"separator"`
	IDSuffix      string `yaml:"id_suffix"`

	Debounce time.Duration `yaml:"debounce"` // delay before a watched rerun
}

// Default returns a configuration with default settings.
func Default() *Config {
	return &Config{
		Source:     "example/people.json",
		Target:     "example/output",
		Sink:       "dir",
		Codec:      "none",
		Duplicates: "error",
		Separator:  "_",
		IDSuffix:   "_id",
		Database:   "jnorm",
		Debounce:   500 * time.Millisecond,
	}
}

// Load reads a configuration file. Settings not present in the file keep
// their default values. Unknown settings are an error.
//
// The file is YAML, unless its name ends in .json, .jsonc, or .hujson, in
// which case it is JSON that may contain comments and trailing commas.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".json", ".jsonc", ".hujson":
		data, err = hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports an error if c contains an invalid setting.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("no source file")
	}
	if _, err := c.duplicates(); err != nil {
		return err
	}
	if _, err := sink.ParseCodec(c.Codec); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("invalid max depth %d", c.MaxDepth)
	}
	switch c.Sink {
	case "dir", "badger":
		if c.Target == "" {
			return fmt.Errorf("the %s sink requires a target", c.Sink)
		}
	case "mongo":
		if c.DSN == "" || c.Database == "" {
			return errors.New("the mongo sink requires a DSN and a database")
		}
	default:
		if _, err := sink.ParseDialect(c.Sink); err != nil {
			return fmt.Errorf("unknown sink %q", c.Sink)
		}
		if c.DSN == "" {
			return fmt.Errorf("the %s sink requires a DSN", c.Sink)
		}
	}
	return nil
}

func (c *Config) duplicates() (jnorm.DuplicatePolicy, error) {
	switch c.Duplicates {
	case "", "error":
		return jnorm.DuplicateError, nil
	case "last":
		return jnorm.DuplicateLast, nil
	}
	return 0, fmt.Errorf("unknown duplicate policy %q", c.Duplicates)
}

// RootName returns the name of the root table, the base name of the source
// file without its extension.
func (c *Config) RootName() string {
	base := filepath.Base(c.Source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Options returns normalizer options for c.
func (c *Config) Options() (*jnorm.Options, error) {
	dups, err := c.duplicates()
	if err != nil {
		return nil, err
	}
	opts := &jnorm.Options{
		Name:           c.RootName(),
		Naming:         &jnorm.Naming{Separator: c.Separator, IDSuffix: c.IDSuffix},
		Duplicates:     dups,
		MaxDepth:       c.MaxDepth,
		AllowComments:  c.AllowComments,
		MultipleValues: c.Lines,
	}
	if c.ExactNumbers {
		opts.Numbers = jnorm.Exact
	}
	return opts, nil
}

// OpenSink opens the output sink selected by c.
func (c *Config) OpenSink(ctx context.Context) (jnorm.Sink, error) {
	switch c.Sink {
	case "dir":
		codec, err := sink.ParseCodec(c.Codec)
		if err != nil {
			return nil, err
		}
		d := &sink.Dir{Path: c.Target, Codec: codec, Atomic: c.Atomic}
		if err := d.Stat(true); err != nil {
			return nil, err
		}
		return d, nil
	case "badger":
		return sink.OpenBadger(sink.BadgerOptions{Path: c.Target})
	case "mongo":
		return sink.OpenMongo(ctx, c.DSN, c.Database)
	}
	dialect, err := sink.ParseDialect(c.Sink)
	if err != nil {
		return nil, fmt.Errorf("unknown sink %q", c.Sink)
	}
	return sink.OpenSQL(ctx, dialect, c.DSN)
}
