/* melstft computes log mel spectrograms from mono signals.
 *
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
package melstft

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/revsic/speechset/tools/config"
	"github.com/revsic/speechset/tools/signals"
	"github.com/revsic/speechset/tools/spectrum"
)

const (
	// Below minLogHz the Slaney mel scale is linear with slope 3/200 mel per Hz.
	minLogHz  = 1000.0
	melPerHz  = 3.0 / 200.0
	minLogMel = minLogHz * melPerHz
)

var logStep = math.Log(6.4) / 27.0

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(f float64) float64 {
	if f < minLogHz {
		return f * melPerHz
	}
	return minLogMel + math.Log(f/minLogHz)/logStep
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	if m < minLogMel {
		return m / melPerHz
	}
	return minLogHz * math.Exp(logStep*(m-minLogMel))
}

// Filter returns the [fftSize/2+1, mels] triangular mel filter bank with Slaney area
// normalization, so each filter has unit area over frequency.
func Filter(rate signals.Hz, fftSize, mels int, fmin, fmax float64) *mat.Dense {
	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	for bin := 1; bin < bins; bin++ {
		freqs[bin] = float64(rate) / 2 * float64(bin) / float64(bins-1)
	}
	minMel, maxMel := HzToMel(fmin), HzToMel(fmax)
	edges := make([]float64, mels+2)
	for idx := range edges {
		edges[idx] = MelToHz(minMel + (maxMel-minMel)*float64(idx)/float64(mels+1))
	}

	filter := mat.NewDense(bins, mels, nil)
	for m := 0; m < mels; m++ {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (upper - lower)
		for bin, f := range freqs {
			rising := (f - lower) / (center - lower)
			falling := (upper - f) / (upper - center)
			if weight := math.Min(rising, falling); weight > 0 {
				filter.Set(bin, m, weight*enorm)
			}
		}
	}
	return filter
}

// MelSTFT is an immutable log mel spectrogram transform, safe for concurrent use.
type MelSTFT struct {
	config config.Config
	stft   *spectrum.STFT
	filter *mat.Dense
}

// New validates the configuration and precomputes the window and the filter bank.
func New(c config.Config) (*MelSTFT, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	window, err := c.Window()
	if err != nil {
		return nil, err
	}
	stft, err := spectrum.NewSTFT(c.FFT, c.Hop, window(c.Win))
	if err != nil {
		return nil, &config.ConfigurationError{Key: "win", Value: c.Win, Reason: err.Error()}
	}
	return &MelSTFT{
		config: c,
		stft:   stft,
		filter: Filter(signals.Hz(c.SR), c.FFT, c.Mel, c.FMin, c.FMax),
	}, nil
}

// Config returns the configuration the transform was built from.
func (m *MelSTFT) Config() config.Config {
	return m.config
}

// MelFilter returns a copy of the [fft/2+1, mel] filter bank.
func (m *MelSTFT) MelFilter() *mat.Dense {
	return mat.DenseCopyOf(m.filter)
}

// ExpectedFrameCount returns the number of frames Transform produces for n samples.
func (m *MelSTFT) ExpectedFrameCount(n int) int {
	return m.stft.Frames(n)
}

// Transform returns the [n/hop+1][mel] log mel spectrogram of the signal.
func (m *MelSTFT) Transform(signal signals.Float32Slice) [][]float32 {
	mags := m.stft.Magnitudes(signal.Float64())
	bins := m.stft.Bins()
	flat := make([]float64, 0, len(mags)*bins)
	for _, frame := range mags {
		flat = append(flat, frame...)
	}
	power := mat.NewDense(len(mags), bins, flat)
	mel := &mat.Dense{}
	mel.Mul(power, m.filter)

	eps := m.config.Eps
	res := make([][]float32, len(mags))
	for frame := range res {
		row := make([]float32, m.config.Mel)
		for bin := range row {
			row[bin] = float32(math.Log(math.Max(mel.At(frame, bin), eps)))
		}
		res[frame] = row
	}
	return res
}

// TransformBatch transforms every row independently, so row i equals Transform(batch[i]).
// Zero padded rows are transformed including their padding.
func (m *MelSTFT) TransformBatch(batch []signals.Float32Slice) [][][]float32 {
	res := make([][][]float32, len(batch))
	for idx := range batch {
		res[idx] = m.Transform(batch[idx])
	}
	return res
}
