/* config contains the dataset construction parameters shared by the transforms and datasets.
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
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/revsic/speechset/tools/spectrum"
)

// ConfigurationError describes an invalid configuration value.
type ConfigurationError struct {
	Key    string
	Value  any
	Reason string
}

func (c *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %v=%v: %v", c.Key, c.Value, c.Reason)
}

// Config holds the audio, STFT and batching parameters.
type Config struct {
	// SR is the sampling rate of the audio.
	SR int `json:"sr" yaml:"sr"`
	// FFT is the FFT size.
	FFT int `json:"fft" yaml:"fft"`
	// Hop is the distance between frames in samples.
	Hop int `json:"hop" yaml:"hop"`
	// Win is the frame length, at most FFT.
	Win int `json:"win" yaml:"win"`
	// WinFn names the window function, one of spectrum.WindowNames.
	WinFn string `json:"win_fn" yaml:"win_fn"`
	// Mel is the number of mel bins.
	Mel int `json:"mel" yaml:"mel"`
	// FMin and FMax bound the mel filter bank.
	FMin float64 `json:"fmin" yaml:"fmin"`
	FMax float64 `json:"fmax" yaml:"fmax"`
	// Eps is the floor applied before the log.
	Eps float64 `json:"eps" yaml:"eps"`
	// Batch is the batch size, nil for unbatched samples.
	Batch *int `json:"batch" yaml:"batch"`
}

// Default returns the default configuration.
func Default() Config {
	batch := 16
	return Config{
		SR:    22050,
		FFT:   1024,
		Hop:   256,
		Win:   1024,
		WinFn: "hann",
		Mel:   80,
		FMin:  0,
		FMax:  8000,
		Eps:   1e-5,
		Batch: &batch,
	}
}

// Batched returns the batch size and whether batching is enabled.
func (c Config) Batched() (int, bool) {
	if c.Batch == nil {
		return 0, false
	}
	return *c.Batch, true
}

// WithBatch returns a copy of the configuration with the given batch size, 0 disables batching.
func (c Config) WithBatch(size int) Config {
	if size <= 0 {
		c.Batch = nil
		return c
	}
	c.Batch = &size
	return c
}

// Window returns the configured window function.
func (c Config) Window() (spectrum.Window, error) {
	w, found := spectrum.WindowByName(c.WinFn)
	if !found {
		return nil, &ConfigurationError{
			Key:    "win_fn",
			Value:  c.WinFn,
			Reason: fmt.Sprintf("must be one of %v", spectrum.WindowNames()),
		}
	}
	return w, nil
}

// Validate returns a ConfigurationError for the first invalid field.
func (c Config) Validate() error {
	for _, field := range []struct {
		key string
		val int
	}{
		{"sr", c.SR},
		{"fft", c.FFT},
		{"hop", c.Hop},
		{"win", c.Win},
		{"mel", c.Mel},
	} {
		if field.val <= 0 {
			return &ConfigurationError{Key: field.key, Value: field.val, Reason: "must be positive"}
		}
	}
	if c.Win > c.FFT {
		return &ConfigurationError{Key: "win", Value: c.Win, Reason: fmt.Sprintf("must not exceed fft %v", c.FFT)}
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if c.FMin < 0 {
		return &ConfigurationError{Key: "fmin", Value: c.FMin, Reason: "must not be negative"}
	}
	if c.FMax <= c.FMin || c.FMax > float64(c.SR)/2 {
		return &ConfigurationError{Key: "fmax", Value: c.FMax, Reason: fmt.Sprintf("must be in (%v, %v]", c.FMin, float64(c.SR)/2)}
	}
	if c.Eps <= 0 {
		return &ConfigurationError{Key: "eps", Value: c.Eps, Reason: "must be positive"}
	}
	if c.Batch != nil && *c.Batch <= 0 {
		return &ConfigurationError{Key: "batch", Value: *c.Batch, Reason: "must be positive or null"}
	}
	return nil
}

// presence records which keys a configuration file sets.
type presence struct {
	FFT *int `json:"fft" yaml:"fft"`
	Win *int `json:"win" yaml:"win"`
}

// Parse overlays the JSON or YAML document onto the defaults. Unknown keys are ignored.
func Parse(data []byte, format string) (Config, error) {
	c := Default()
	p := presence{}
	switch format {
	case "json":
		if err := json.Unmarshal(data, &c); err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Config{}, err
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unknown configuration format %q", format)
	}
	if p.FFT != nil && p.Win == nil {
		c.Win = c.FFT
	}
	return c, nil
}

// Load reads the configuration file at path, choosing the format by extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	c, err := Parse(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %v: %w", path, err)
	}
	return c, nil
}

// WriteJSON writes the configuration as a JSON document.
func (c Config) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
