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

	"github.com/spf13/cobra"

	"github.com/revsic/speechset/tools/dump"
	"github.com/revsic/speechset/tools/grapheme"
	"github.com/revsic/speechset/tools/signals"
	"github.com/revsic/speechset/tools/speechset"
)

func newExportCommand(g *globals) *cobra.Command {
	src := &source{}
	var (
		configPath string
		target     string
		path       string
		speakerIDs bool
		lenient    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write normalized samples as tf.Examples to a TFRecord file",
		Long: `export normalizes every sample and writes it as a tf.Example to a TFRecord file.

Acoustic examples hold text, mel, mel_shape, textlen and mellen features, vocoder
examples hold mel, mel_shape, audio, mellen and audiolen features. The effective
configuration is written next to the records as <path>.json.`,
		Example: `  speechset export --config config.yaml --reader ljspeech --data-dir ./LJSpeech-1.1 --target acoustic --path ljspeech.tfrecord
  speechset export --dump ./ljspeech-dump --target vocoder --path vocoder.tfrecord`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("no --path given")
			}
			c, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reader, _, closeReader, err := src.open(cmd.Context(), signals.Hz(c.SR), g.logger)
			if err != nil {
				return err
			}
			defer closeReader()

			var written int
			switch target {
			case "acoustic":
				mode := grapheme.Strict
				if lenient {
					mode = grapheme.Lenient
				}
				ds, err := speechset.NewAcousticDataset(reader, c, grapheme.WithMode(mode), grapheme.WithLogger(g.logger))
				if err != nil {
					return err
				}
				if speakerIDs {
					written, err = dump.Export(speechset.WithIDs(ds, nil), c, path)
				} else {
					written, err = dump.Export(ds, c, path)
				}
				if err != nil {
					return err
				}
			case "vocoder":
				ds, err := speechset.NewVocoderDataset(reader, c)
				if err != nil {
					return err
				}
				if speakerIDs {
					written, err = dump.Export(speechset.WithIDs(ds, nil), c, path)
				} else {
					written, err = dump.Export(ds, c, path)
				}
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown --target %q, wanted acoustic or vocoder", target)
			}
			g.logger.Info("exported", "records", written, "target", target, "path", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %v %v records to %v\n", written, target, path)
			return nil
		},
	}
	src.register(cmd, true)
	cmd.Flags().StringVar(&configPath, "config", "", "JSON or YAML configuration file, defaults apply to missing keys")
	cmd.Flags().StringVar(&target, "target", "acoustic", "dataset to export: acoustic or vocoder")
	cmd.Flags().StringVar(&path, "path", "", "TFRecord file to write")
	cmd.Flags().BoolVar(&speakerIDs, "speaker-ids", false, "add an ids feature holding the speaker id")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "drop characters outside the grapheme vocabulary instead of failing")
	return cmd
}
