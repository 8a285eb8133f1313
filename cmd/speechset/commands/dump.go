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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/revsic/speechset/tools/dump"
	"github.com/revsic/speechset/tools/signals"
)

func newDumpCommand(g *globals) *cobra.Command {
	src := &source{}
	var (
		sr      int
		out     string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Store the raw samples of corpora with a manifest",
		Example: `  speechset dump --reader ljspeech --data-dir ./LJSpeech-1.1 --sr 22050 --out ./ljspeech-dump
  speechset dump --reader libritts,vctk --data-dir ./LibriTTS/train-clean-100,./VCTK --sr 24000 --out s3://corpora/mixed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("no --out given")
			}
			reader, rate, closeReader, err := src.open(cmd.Context(), signals.Hz(sr), g.logger)
			if err != nil {
				return err
			}
			defer closeReader()
			store, err := dump.OpenStore(out, g.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			m, err := dump.Dump(cmd.Context(), reader, store, dump.Options{
				Workers:        workers,
				SampleRate:     rate,
				Progress:       true,
				ProgressOutput: cmd.ErrOrStderr(),
				Logger:         g.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dumped %v samples of %v speakers at %vHz to %v\n", len(reader.Keys()), len(m.Speakers), m.SR, out)
			return nil
		},
	}
	src.register(cmd, false)
	cmd.Flags().IntVar(&sr, "sr", 0, "sample rate to resample audio to, 0 keeps the corpus rate")
	cmd.Flags().StringVar(&out, "out", "", "store URI to dump to")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of samples loaded concurrently")
	return cmd
}
