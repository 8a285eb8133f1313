/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/revsic/speechset/tools/config"
	"github.com/revsic/speechset/tools/dump"
	"github.com/revsic/speechset/tools/readers"
	"github.com/revsic/speechset/tools/signals"
)

type globals struct {
	logLevel string
	logger   *slog.Logger
}

// NewRootCommand returns the speechset command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	g := &globals{logger: slog.Default()}
	root := &cobra.Command{
		Use:   "speechset",
		Short: "Prepare speech corpora for acoustic model and vocoder training",
		Long: `speechset reads speech corpora, dumps their raw samples into a store,
exports normalized samples as TFRecords and summarizes datasets.

Supported readers: ` + strings.Join(readers.Names(), ", ") + `

Stores are named by URI:
  /path/to/dir, file:///path/to/dir   local directory
  s3://bucket/prefix                  S3, configured by AWS_* variables
  badger:///path/to/dir               Badger database`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "minimum level of logged messages: debug, info, warn or error")
	root.AddCommand(newDumpCommand(g), newExportCommand(g), newInspectCommand(g))
	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// source selects the corpora or the dump a command reads.
type source struct {
	readers  []string
	dataDirs []string
	dump     string
}

func (s *source) register(cmd *cobra.Command, withDump bool) {
	cmd.Flags().StringSliceVar(&s.readers, "reader", nil, "comma separated corpus readers, one of "+strings.Join(readers.Names(), ", "))
	cmd.Flags().StringSliceVar(&s.dataDirs, "data-dir", nil, "comma separated corpus directories, one per reader")
	if withDump {
		cmd.Flags().StringVar(&s.dump, "dump", "", "store URI of a dump to read instead of corpora")
	}
}

func noClose() error {
	return nil
}

// open returns the selected reader loading audio at rate, or at the native rate of the
// corpora if rate is zero, and the rate loaded audio has.
func (s *source) open(ctx context.Context, rate signals.Hz, logger *slog.Logger) (readers.Reader, signals.Hz, func() error, error) {
	if s.dump != "" {
		store, err := dump.OpenStore(s.dump, logger)
		if err != nil {
			return nil, 0, nil, err
		}
		reader, err := dump.NewReader(ctx, store, rate, logger)
		if err != nil {
			store.Close()
			return nil, 0, nil, err
		}
		return reader, reader.SampleRate(), store.Close, nil
	}
	if len(s.readers) == 0 {
		return nil, 0, nil, fmt.Errorf("no --reader given")
	}
	if len(s.readers) != len(s.dataDirs) {
		return nil, 0, nil, fmt.Errorf("got %v readers but %v data directories", len(s.readers), len(s.dataDirs))
	}
	corpora := make([]readers.Reader, len(s.readers))
	var native signals.Hz
	for idx, name := range s.readers {
		corpus, err := readers.Open(name, s.dataDirs[idx], readers.Options{SampleRate: rate, Logger: logger})
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%v: %w", name, err)
		}
		if idx == 0 {
			native = corpus.SampleRate()
		} else if corpus.SampleRate() != native {
			return nil, 0, nil, fmt.Errorf("%v has rate %v, %v has rate %v, select a common rate", s.readers[0], native, name, corpus.SampleRate())
		}
		logger.Debug("opened corpus", "reader", name, "samples", len(corpus.Keys()), "speakers", len(corpus.Speakers()))
		corpora[idx] = corpus
	}
	if len(corpora) == 1 {
		return corpora[0], native, noClose, nil
	}
	return readers.NewConcat(corpora...), native, noClose, nil
}

func loadConfig(path string) (config.Config, error) {
	c := config.Default()
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}
	return c, nil
}
