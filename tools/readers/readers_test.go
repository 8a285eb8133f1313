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
package readers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/revsic/speechset/tools/signals"
)

func writeWAV(t *testing.T, path string, n int, rate signals.Hz) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, signals.Sine(220, 0.5, rate, n).Float32().WriteWAV(f, rate))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLJSpeech(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"LJ001-0002", "LJ001-0001", "LJ002-0001"} {
		writeWAV(t, filepath.Join(dir, "wavs", name+".wav"), 2205, 22050)
	}
	writeFile(t, filepath.Join(dir, "wavs", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "metadata.csv"), strings.Join([]string{
		"LJ001-0001|Printing, in the only sense|printing, in the only sense",
		"LJ001-0002|in being comparatively modern.|in being comparatively modern.",
		"",
	}, "\n"))

	c, err := LJSpeech(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"ljspeech"}, c.Speakers())
	require.Equal(t, []string{
		filepath.Join(dir, "wavs", "LJ001-0001.wav"),
		filepath.Join(dir, "wavs", "LJ001-0002.wav"),
		filepath.Join(dir, "wavs", "LJ002-0001.wav"),
	}, c.Keys())
	require.Equal(t, LJSpeechRate, c.SampleRate())

	sample, err := c.Load(c.Keys()[0])
	require.NoError(t, err)
	require.Equal(t, 0, sample.SpeakerID)
	require.Equal(t, "printing, in the only sense", sample.Text)
	require.Len(t, sample.Audio, 2205)

	missing, err := c.Load(c.Keys()[2])
	require.NoError(t, err)
	require.Equal(t, UnknownSpeaker, missing.SpeakerID)
	require.Equal(t, "", missing.Text)

	_, _, err = c.Lookup(c.Keys()[2])
	require.True(t, IsMissingKey(err))
}

func TestLJSpeechResample(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "wavs", "a.wav"), 2205, 22050)
	writeFile(t, filepath.Join(dir, "metadata.csv"), "a|A|a\n")
	c, err := LJSpeech(dir, Options{SampleRate: 16000})
	require.NoError(t, err)
	sample, err := c.Load(c.Keys()[0])
	require.NoError(t, err)
	require.Len(t, sample.Audio, signals.ResampledLen(2205, 22050, 16000))
}

func TestLJSpeechMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "metadata.csv"), "a|b\n")
	_, err := LJSpeech(dir, Options{})
	require.Error(t, err)
}

func TestLibriTTS(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "19", "198", "19_198_000000_000000.wav"), 240, 24000)
	writeWAV(t, filepath.Join(dir, "84", "121", "84_121_000001_000000.wav"), 480, 24000)
	writeFile(t, filepath.Join(dir, "19", "198", "19_198.trans.tsv"), "19_198_000000_000000\tNorthanger Abbey\tNorthanger Abbey.\n")
	writeFile(t, filepath.Join(dir, "84", "121", "84_121.trans.tsv"), "84_121_000001_000000\tChapter 1\tChapter one\n")

	c, err := LibriTTS(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"19", "84"}, c.Speakers())
	require.Len(t, c.Keys(), 2)

	sample, err := c.Load(c.Keys()[1])
	require.NoError(t, err)
	require.Equal(t, 1, sample.SpeakerID)
	require.Equal(t, "Chapter one", sample.Text)
	require.Len(t, sample.Audio, 480)
}

func TestLibriSpeech(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "103", "1240", "103-1240-0000.flac"), "not a flac stream")
	writeFile(t, filepath.Join(dir, "103", "1240", "103-1240.trans.txt"), "103-1240-0000 CHAPTER ONE  MISSUS RACHEL\n103-1240-0001 SHE WAS\n")

	c, err := LibriSpeech(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"103"}, c.Speakers())
	require.Equal(t, []string{filepath.Join(dir, "103", "1240", "103-1240-0000.flac")}, c.Keys())

	speaker, text, err := c.Lookup(c.Keys()[0])
	require.NoError(t, err)
	require.Equal(t, 0, speaker)
	require.Equal(t, "CHAPTER ONE  MISSUS RACHEL", text)

	_, err = c.Load(c.Keys()[0])
	ioErr := &ReaderIOError{}
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, c.Keys()[0], ioErr.Key)
}

func TestVCTK(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "wav48", "p225", "p225_001.wav"), 480, 48000)
	writeWAV(t, filepath.Join(dir, "wav48", "p226", "p226_001.wav"), 480, 48000)
	writeWAV(t, filepath.Join(dir, "wav48", "p227", "p227_001.wav"), 480, 48000)
	writeWAV(t, filepath.Join(dir, "wav48", "p227", "p227_002.wav"), 480, 48000)
	writeFile(t, filepath.Join(dir, "txt", "p225", "p225_001.txt"), "Please call Stella.\n")
	writeFile(t, filepath.Join(dir, "txt", "p227", "p227_001.txt"), "Ask her to bring these things.")

	c, err := VCTK(dir, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"p225", "p226", "p227"}, c.Speakers())
	require.Len(t, c.Keys(), 3)

	sample, err := c.Load(c.Keys()[1])
	require.NoError(t, err)
	require.Equal(t, 2, sample.SpeakerID)
	require.Equal(t, "Ask her to bring these things.", sample.Text)

	missing, err := c.Load(c.Keys()[2])
	require.NoError(t, err)
	require.Equal(t, UnknownSpeaker, missing.SpeakerID)
}

func TestOpen(t *testing.T) {
	require.Equal(t, []string{"librispeech", "libritts", "ljspeech", "vctk"}, Names())
	_, err := Open("timit", t.TempDir(), Options{})
	require.Error(t, err)
	c, err := Open("vctk", filepath.Join("testdata", "missing"), Options{})
	require.Error(t, err)
	require.Nil(t, c)
}

func memory(t *testing.T, speakers []string, samples ...RawSample) *Memory {
	t.Helper()
	keys := []string{}
	table := map[string]RawSample{}
	for idx, sample := range samples {
		key := speakers[0] + "/" + string(rune('a'+idx))
		keys = append(keys, key)
		table[key] = sample
	}
	m, err := NewMemory(speakers, keys, table)
	require.NoError(t, err)
	return m
}

func TestConcat(t *testing.T) {
	first := memory(t, []string{"a0", "a1"},
		RawSample{SpeakerID: 1, Text: "x", Audio: signals.Float32Slice{1}},
		RawSample{SpeakerID: UnknownSpeaker, Text: ""},
	)
	second := memory(t, []string{"b0", "b1", "b2"},
		RawSample{SpeakerID: 2, Text: "y", Audio: signals.Float32Slice{2, 3}},
	)
	c := NewConcat(first, second)
	require.Equal(t, []string{"a0", "a1", "b0", "b1", "b2"}, c.Speakers())
	require.Equal(t, []string{"a0/a", "a0/b", "b0/a"}, c.Keys())

	for _, tc := range []struct {
		key         string
		wantSpeaker int
		wantText    string
	}{
		{key: "a0/a", wantSpeaker: 1, wantText: "x"},
		{key: "a0/b", wantSpeaker: UnknownSpeaker, wantText: ""},
		{key: "b0/a", wantSpeaker: 4, wantText: "y"},
	} {
		sample, err := c.Load(tc.key)
		require.NoError(t, err)
		require.Equal(t, tc.wantSpeaker, sample.SpeakerID, tc.key)
		require.Equal(t, tc.wantText, sample.Text, tc.key)
	}

	_, err := c.Load("c0/a")
	require.True(t, IsMissingKey(err))
}

func TestConcatDuplicateKeys(t *testing.T) {
	first, err := NewMemory([]string{"a"}, []string{"shared", "only-first"}, map[string]RawSample{
		"shared":     {SpeakerID: 0, Text: "first"},
		"only-first": {SpeakerID: 0, Text: "x"},
	})
	require.NoError(t, err)
	second, err := NewMemory([]string{"b"}, []string{"shared", "only-second"}, map[string]RawSample{
		"shared":      {SpeakerID: 0, Text: "second"},
		"only-second": {SpeakerID: 0, Text: "y"},
	})
	require.NoError(t, err)

	c := NewConcat(first, second)
	require.Equal(t, []string{"shared", "only-first", "only-second"}, c.Keys())
	sample, err := c.Load("shared")
	require.NoError(t, err)
	require.Equal(t, "first", sample.Text)
	require.Equal(t, 0, sample.SpeakerID)
	sample, err = c.Load("only-second")
	require.NoError(t, err)
	require.Equal(t, 1, sample.SpeakerID)
}

func TestNewMemory(t *testing.T) {
	_, err := NewMemory(nil, []string{"a"}, map[string]RawSample{})
	require.True(t, IsMissingKey(err))

	m, err := NewMemory([]string{"s"}, []string{"a"}, map[string]RawSample{"a": {Audio: signals.Float32Slice{1}}})
	require.NoError(t, err)
	sample, err := m.Load("a")
	require.NoError(t, err)
	sample.Audio[0] = 2
	again, err := m.Load("a")
	require.NoError(t, err)
	require.Equal(t, float32(1), again.Audio[0])
}
