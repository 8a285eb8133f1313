/* spectrum contains the short time Fourier analysis used by the mel transform.
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
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
)

// Window returns a window function of length n.
type Window func(n int) []float64

// Hann returns a periodic Hann window.
func Hann(n int) []float64 {
	return cosineWindow(n, 0.5, 0.5)
}

// Hamming returns a periodic Hamming window.
func Hamming(n int) []float64 {
	return cosineWindow(n, 0.54, 0.46)
}

func cosineWindow(n int, a, b float64) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = a - b*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return res
}

var windows = map[string]Window{
	"hann":    Hann,
	"hamming": Hamming,
}

// WindowByName returns the window function with the given name.
func WindowByName(name string) (Window, bool) {
	w, found := windows[name]
	return w, found
}

// WindowNames returns the sorted names accepted by WindowByName.
func WindowNames() []string {
	res := make([]string, 0, len(windows))
	for name := range windows {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// reflectIndex maps i onto [0, n) by mirroring at both edges without repeating the edge sample.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// ReflectPad returns the signal extended by left and right samples mirrored at the edges.
// An empty signal is padded with zeros.
func ReflectPad(signal []float64, left, right int) []float64 {
	res := make([]float64, left+len(signal)+right)
	if len(signal) == 0 {
		return res
	}
	for idx := range res {
		res[idx] = signal[reflectIndex(idx-left, len(signal))]
	}
	return res
}

// STFT computes centered short time Fourier magnitudes.
type STFT struct {
	FFTSize int
	Hop     int
	Window  []float64
}

// NewSTFT returns an STFT using window as both frame length and taper.
func NewSTFT(fftSize, hop int, window []float64) (*STFT, error) {
	if hop <= 0 {
		return nil, fmt.Errorf("hop %v must be positive", hop)
	}
	if len(window) == 0 || len(window) > fftSize {
		return nil, fmt.Errorf("window length %v must be in [1, %v]", len(window), fftSize)
	}
	return &STFT{
		FFTSize: fftSize,
		Hop:     hop,
		Window:  window,
	}, nil
}

// Bins returns the number of non negative frequency bins per frame.
func (s *STFT) Bins() int {
	return s.FFTSize/2 + 1
}

// Frames returns the number of frames produced for a signal of n samples.
func (s *STFT) Frames(n int) int {
	return n/s.Hop + 1
}

// Magnitudes returns the [frames][bins] magnitude spectrum of the signal. The signal is
// reflect padded by half a window on each side so frame i is centered on sample i*Hop.
func (s *STFT) Magnitudes(signal []float64) [][]float64 {
	win := len(s.Window)
	padded := ReflectPad(signal, win/2, win-win/2)
	res := make([][]float64, s.Frames(len(signal)))
	buffer := make([]float64, s.FFTSize)
	for frame := range res {
		start := frame * s.Hop
		for i := range buffer {
			buffer[i] = 0
		}
		for i, w := range s.Window {
			buffer[i] = padded[start+i] * w
		}
		coeffs := fft.FFTReal(buffer)
		mags := make([]float64, s.Bins())
		for bin := range mags {
			mags[bin] = cmplx.Abs(coeffs[bin])
		}
		res[frame] = mags
	}
	return res
}
