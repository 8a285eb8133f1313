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
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func intPtr(i int) *int {
	return &i
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if size, batched := c.Batched(); !batched || size != 16 {
		t.Errorf("Got batch %v/%v, wanted 16/true", size, batched)
	}
	if c.Win != c.FFT {
		t.Errorf("Got win %v, wanted fft %v", c.Win, c.FFT)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		mutate  func(c *Config)
		wantKey string
	}{
		{mutate: func(c *Config) { c.WinFn = "blackman" }, wantKey: "win_fn"},
		{mutate: func(c *Config) { c.Hop = 0 }, wantKey: "hop"},
		{mutate: func(c *Config) { c.Win = 2048 }, wantKey: "win"},
		{mutate: func(c *Config) { c.FMax = 20000 }, wantKey: "fmax"},
		{mutate: func(c *Config) { c.FMin = 9000 }, wantKey: "fmax"},
		{mutate: func(c *Config) { c.FMin = -1 }, wantKey: "fmin"},
		{mutate: func(c *Config) { c.Eps = 0 }, wantKey: "eps"},
		{mutate: func(c *Config) { c.Batch = intPtr(0) }, wantKey: "batch"},
		{mutate: func(c *Config) { c.Batch = nil }},
		{mutate: func(c *Config) { c.WinFn = "hamming"; c.Win = 800 }},
	} {
		c := Default()
		tc.mutate(&c)
		err := c.Validate()
		if tc.wantKey == "" {
			if err != nil {
				t.Errorf("Validate(%+v) = %v, wanted nil", c, err)
			}
			continue
		}
		confErr := &ConfigurationError{}
		if !errors.As(err, &confErr) {
			t.Errorf("Validate(%+v) = %v, wanted a ConfigurationError", c, err)
			continue
		}
		if confErr.Key != tc.wantKey {
			t.Errorf("Got error for %q, wanted %q", confErr.Key, tc.wantKey)
		}
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		data   string
		format string
		want   func(c *Config)
	}{
		{
			data:   `{"sr": 24000, "fft": 2048, "hop": 300, "unknown": true}`,
			format: "json",
			want: func(c *Config) {
				c.SR = 24000
				c.FFT = 2048
				c.Win = 2048
				c.Hop = 300
			},
		},
		{
			data:   `{"fft": 2048, "win": 1200, "win_fn": "hamming", "batch": null}`,
			format: "json",
			want: func(c *Config) {
				c.FFT = 2048
				c.Win = 1200
				c.WinFn = "hamming"
				c.Batch = nil
			},
		},
		{
			data:   "mel: 128\nfmax: 11025\nbatch: 4\n",
			format: "yaml",
			want: func(c *Config) {
				c.Mel = 128
				c.FMax = 11025
				c.Batch = intPtr(4)
			},
		},
	} {
		got, err := Parse([]byte(tc.data), tc.format)
		if err != nil {
			t.Fatal(err)
		}
		want := Default()
		tc.want(&want)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tc.data, diff)
		}
	}
	if _, err := Parse([]byte("{}"), "toml"); err == nil {
		t.Errorf("Parse of toml succeeded")
	}
}

func TestLoadAndWrite(t *testing.T) {
	dir := t.TempDir()
	c := Default().WithBatch(0)
	c.Mel = 100
	buf := &bytes.Buffer{}
	if err := c.WriteJSON(buf); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("Load of a missing file succeeded")
	}
}
