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
package speechset

import "fmt"

// padSequences copies the sequences into rows of the maximum length, right padded with
// zero values, and returns the original lengths.
func padSequences[T any](seqs [][]T) ([][]T, []int) {
	lengths := make([]int, len(seqs))
	maxLen := 0
	for idx, seq := range seqs {
		lengths[idx] = len(seq)
		maxLen = max(maxLen, len(seq))
	}
	res := make([][]T, len(seqs))
	for idx, seq := range seqs {
		row := make([]T, maxLen)
		copy(row, seq)
		res[idx] = row
	}
	return res, lengths
}

// padFrames copies [frames][bins] spectrograms into [maxFrames][bins] arrays, right padded
// along time with zero frames, and returns the original frame counts.
func padFrames(specs [][][]float32) ([][][]float32, []int, error) {
	width := -1
	for idx, spec := range specs {
		for _, frame := range spec {
			if width == -1 {
				width = len(frame)
			} else if len(frame) != width {
				return nil, nil, fmt.Errorf("spectrogram %v has %v bins, wanted %v", idx, len(frame), width)
			}
		}
	}
	width = max(width, 0)
	lengths := make([]int, len(specs))
	maxLen := 0
	for idx, spec := range specs {
		lengths[idx] = len(spec)
		maxLen = max(maxLen, len(spec))
	}
	res := make([][][]float32, len(specs))
	for idx, spec := range specs {
		rows := make([][]float32, maxLen)
		for frame := range rows {
			rows[frame] = make([]float32, width)
			if frame < len(spec) {
				copy(rows[frame], spec[frame])
			}
		}
		res[idx] = rows
	}
	return res, lengths, nil
}
