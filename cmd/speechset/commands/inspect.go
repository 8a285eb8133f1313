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
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/revsic/speechset/tools/grapheme"
	"github.com/revsic/speechset/tools/signals"
	"github.com/revsic/speechset/tools/speechset"
)

var (
	accent     = lipgloss.Color("#00ff9f")
	dim        = lipgloss.Color("#6e7681")
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Width(16)
	valueStyle = lipgloss.NewStyle()
	noteStyle  = lipgloss.NewStyle().Foreground(dim)
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

type row struct {
	label string
	value string
}

func renderSummary(title string, rows []row, note string) string {
	lines := []string{titleStyle.Render(title), ""}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r.label), valueStyle.Render(r.value)))
	}
	if note != "" {
		lines = append(lines, "", noteStyle.Render(note))
	}
	return frameStyle.Render(strings.Join(lines, "\n"))
}

func shape(dims ...int) string {
	parts := make([]string, len(dims))
	for idx, d := range dims {
		parts[idx] = fmt.Sprint(d)
	}
	return strings.Join(parts, "×")
}

func speakerList(speakers []string) string {
	const shown = 4
	if len(speakers) <= shown {
		return fmt.Sprintf("%v %v", len(speakers), speakers)
	}
	return fmt.Sprintf("%v %v …", len(speakers), speakers[:shown])
}

func newInspectCommand(g *globals) *cobra.Command {
	src := &source{}
	var configPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a corpus or dump and the shapes of its first sample",
		Example: `  speechset inspect --reader ljspeech --data-dir ./LJSpeech-1.1
  speechset inspect --config config.yaml --dump s3://corpora/ljspeech`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reader, rate, closeReader, err := src.open(cmd.Context(), signals.Hz(c.SR), g.logger)
			if err != nil {
				return err
			}
			defer closeReader()
			ds, err := speechset.NewAcousticDataset(reader, c, grapheme.WithMode(grapheme.Lenient), grapheme.WithLogger(g.logger))
			if err != nil {
				return err
			}

			title := strings.Join(src.readers, " + ")
			if src.dump != "" {
				title = src.dump
			}
			rows := []row{
				{"samples", fmt.Sprint(ds.Len())},
				{"speakers", speakerList(reader.Speakers())},
				{"sample rate", fmt.Sprintf("%vHz", rate)},
				{"stft", fmt.Sprintf("fft %v, hop %v, win %v %v", c.FFT, c.Hop, c.Win, c.WinFn)},
				{"mel", fmt.Sprintf("%v bins, %v-%vHz", c.Mel, c.FMin, c.FMax)},
			}
			note := "empty dataset"
			if ds.Len() > 0 {
				raw, err := reader.Load(ds.Keys()[0])
				if err != nil {
					return err
				}
				sample, err := ds.Get(0)
				if err != nil {
					return err
				}
				rows = append(rows,
					row{"first audio", fmt.Sprintf("%v samples, %.2fs", len(raw.Audio), float64(raw.Audio.Duration(rate)))},
					row{"first text", shape(len(sample.Labels))},
					row{"first mel", shape(len(sample.Mel), c.Mel)},
				)
				note = ""
				if size, batched := c.Batched(); batched {
					for batch, err := range ds.Batches(size) {
						if err != nil {
							return err
						}
						rows = append(rows,
							row{"first batch text", shape(len(batch.Text), len(batch.Text[0]))},
							row{"first batch mel", shape(len(batch.Mel), len(batch.Mel[0]), c.Mel)},
						)
						break
					}
				} else {
					note = "unbatched"
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(title, rows, note))
			return nil
		},
	}
	src.register(cmd, true)
	cmd.Flags().StringVar(&configPath, "config", "", "JSON or YAML configuration file, defaults apply to missing keys")
	return cmd
}
