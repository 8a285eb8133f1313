/* signals contains the mono audio signal type together with decoders, encoders and resampling.
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
package signals

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep/flac"
	"github.com/youpy/go-wav"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Hz represents a frequency or a sample rate.
type Hz float64

// Period returns the period of the frequency.
func (h Hz) Period() Seconds {
	return Seconds(1.0 / h)
}

// Seconds represents a duration.
type Seconds float64

// Float32Slice is a mono signal with samples between -1.0 and 1.0.
type Float32Slice []float32

// Float64Slice is a mono signal in double precision, used by the analysis code.
type Float64Slice []float64

// Float64 returns a double precision copy of the signal.
func (f Float32Slice) Float64() Float64Slice {
	res := make(Float64Slice, len(f))
	for idx := range f {
		res[idx] = float64(f[idx])
	}
	return res
}

// Float32 returns a single precision copy of the signal.
func (f Float64Slice) Float32() Float32Slice {
	res := make(Float32Slice, len(f))
	for idx := range f {
		res[idx] = float32(f[idx])
	}
	return res
}

// EqTol returns true if the signals have the same length and each sample differs by at most tol.
func (f Float32Slice) EqTol(o Float32Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(float64(f[idx])-float64(o[idx])) > tol {
			return false
		}
	}
	return true
}

// EqTol returns true if the signals have the same length and each sample differs by at most tol.
func (f Float64Slice) EqTol(o Float64Slice, tol float64) bool {
	if len(f) != len(o) {
		return false
	}
	for idx := range f {
		if math.Abs(f[idx]-o[idx]) > tol {
			return false
		}
	}
	return true
}

// Duration returns the length of the signal when played at rate.
func (f Float32Slice) Duration(rate Hz) Seconds {
	return Seconds(float64(len(f)) * float64(rate.Period()))
}

// Sine returns n samples of a sine with the given frequency and gain.
func Sine(frequency Hz, gain float64, rate Hz, n int) Float64Slice {
	result := make(Float64Slice, n)
	period := rate.Period()
	for i := range result {
		result[i] = gain * math.Sin(2*math.Pi*float64(i)*float64(period)*float64(frequency))
	}
	return result
}

// WriteWAV writes the samples as a mono 16 bit WAV file to a writer, declaring a given
// sample rate. Values outside -1.0 and 1.0 are clipped.
func (f Float32Slice) WriteWAV(w io.Writer, rate Hz) error {
	wavSamples := make([]wav.Sample, len(f))
	for idx := range f {
		val := math.Max(-1, math.Min(1, float64(f[idx])))
		wavSamples[idx] = wav.Sample{
			Values: [2]int{int(val * float64(math.MaxInt16)), 0},
		}
	}
	buf := &bytes.Buffer{}
	wavWriter := wav.NewWriter(buf, uint32(len(f)), 1, uint32(rate), 16)
	if err := wavWriter.WriteSamples(wavSamples); err != nil {
		return err
	}
	_, err := io.Copy(w, buf)
	return err
}

// ReadWAV decodes a WAV stream and returns the channel average and the declared sample rate.
func ReadWAV(r io.Reader) (Float32Slice, Hz, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	if err != nil {
		return nil, 0, err
	}
	channels := uint(format.NumChannels)
	if channels == 0 || channels > 2 {
		return nil, 0, fmt.Errorf("unsupported number of channels %v", channels)
	}
	var buffer Float32Slice
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, err
		}
		for _, sample := range samples {
			sum := 0.0
			for channel := uint(0); channel < channels; channel++ {
				sum += reader.FloatValue(sample, channel)
			}
			buffer = append(buffer, float32(sum/float64(channels)))
		}
	}
	return buffer, Hz(format.SampleRate), nil
}

// ReadFLAC decodes a FLAC stream and returns the channel average and the sample rate.
func ReadFLAC(r io.Reader) (Float32Slice, Hz, error) {
	streamer, format, err := flac.Decode(r)
	if err != nil {
		return nil, 0, err
	}
	defer streamer.Close()

	var buffer Float32Slice
	frames := make([][2]float64, 4096)
	for {
		n, ok := streamer.Stream(frames)
		for idx := 0; idx < n; idx++ {
			buffer = append(buffer, float32((frames[idx][0]+frames[idx][1])*0.5))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, 0, err
	}
	return buffer, Hz(format.SampleRate), nil
}

// Decode reads the audio file at path, choosing the decoder by extension.
func Decode(path string) (Float32Slice, Hz, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return ReadWAV(f)
	case ".flac":
		return ReadFLAC(f)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format %q", ext)
	}
}

// ResampledLen returns the number of samples a signal of n samples has after resampling.
func ResampledLen(n int, from, to Hz) int {
	return int(math.Ceil(float64(n) * float64(to) / float64(from)))
}

// Resample converts the signal from one sample rate to another. The result always has
// ResampledLen samples, the tail is zero filled if the resampler delivered fewer.
func Resample(f Float32Slice, from, to Hz) (Float32Slice, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %v -> %v", from, to)
	}
	if from == to || len(f) == 0 {
		return append(Float32Slice{}, f...), nil
	}
	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	output, err := resampler.Process(f.Float64())
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	res := make(Float32Slice, ResampledLen(len(f), from, to))
	for idx := range res {
		if idx < len(output) {
			res[idx] = float32(output[idx])
		}
	}
	return res, nil
}

// Load decodes the audio file at path and resamples it to rate. A zero rate keeps the
// native rate of the file.
func Load(path string, rate Hz) (Float32Slice, error) {
	signal, native, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if rate == 0 || rate == native {
		return signal, nil
	}
	return Resample(signal, native, rate)
}
