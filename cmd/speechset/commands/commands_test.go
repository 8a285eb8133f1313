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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/revsic/speechset/tools/dump"
	"github.com/revsic/speechset/tools/signals"
)

const testConfig = `sr: 8000
fft: 256
hop: 64
mel: 20
fmax: 4000
batch: 2
`

func ljspeechFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wavs"), 0755))
	metadata := &bytes.Buffer{}
	for idx, text := range []string{"printing, in the only sense.", "with which we are at present concerned!", "differs from most if not all."} {
		name := fmt.Sprintf("LJ001-%04d", idx+1)
		f, err := os.Create(filepath.Join(dir, "wavs", name+".wav"))
		require.NoError(t, err)
		require.NoError(t, signals.Sine(220*signals.Hz(idx+1), 0.5, 8000, 800+idx*200).Float32().WriteWAV(f, 8000))
		require.NoError(t, f.Close())
		fmt.Fprintf(metadata, "%v|%v|%v\n", name, strings.ToUpper(text), text)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.csv"), metadata.Bytes(), 0644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDumpAndExport(t *testing.T) {
	data := ljspeechFixture(t)
	work := t.TempDir()
	configPath := filepath.Join(work, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))
	store := filepath.Join(work, "dump")

	out, err := run(t, "dump", "--reader", "ljspeech", "--data-dir", data, "--sr", "8000", "--out", store, "--workers", "2")
	require.NoError(t, err)
	require.Contains(t, out, "Dumped 3 samples of 1 speakers at 8000Hz")
	require.FileExists(t, filepath.Join(store, dump.ManifestName))
	require.FileExists(t, filepath.Join(store, dump.BlobName(2)))

	vocoder := filepath.Join(work, "vocoder.tfrecord")
	out, err = run(t, "export", "--config", configPath, "--dump", store, "--target", "vocoder", "--path", vocoder)
	require.NoError(t, err)
	require.Contains(t, out, "Wrote 3 vocoder records")
	require.FileExists(t, vocoder+".json")
	f, err := os.Open(vocoder)
	require.NoError(t, err)
	defer f.Close()
	examples, err := dump.ReadTFRecord(f)
	require.NoError(t, err)
	require.Len(t, examples, 3)
	require.Equal(t, []int64{800}, examples[0].Features.Feature["audiolen"].GetInt64List().Value)
	require.Equal(t, []int64{800/64 + 1, 20}, examples[0].Features.Feature["mel_shape"].GetInt64List().Value)

	acoustic := filepath.Join(work, "acoustic.tfrecord")
	out, err = run(t, "export", "--config", configPath, "--reader", "ljspeech", "--data-dir", data, "--path", acoustic, "--speaker-ids")
	require.NoError(t, err)
	require.Contains(t, out, "Wrote 3 acoustic records")
	g, err := os.Open(acoustic)
	require.NoError(t, err)
	defer g.Close()
	examples, err = dump.ReadTFRecord(g)
	require.NoError(t, err)
	require.Len(t, examples, 3)
	require.Equal(t, []int64{0}, examples[1].Features.Feature["ids"].GetInt64List().Value)
	require.Equal(t, []int64{int64(len("with which we are at present concerned!"))}, examples[1].Features.Feature["textlen"].GetInt64List().Value)
}

func TestInspect(t *testing.T) {
	data := ljspeechFixture(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	out, err := run(t, "inspect", "--config", configPath, "--reader", "ljspeech", "--data-dir", data)
	require.NoError(t, err)
	for _, want := range []string{"ljspeech", "samples", "8000Hz", "first mel", "13×20", "first batch mel", "2×16×20"} {
		require.Contains(t, out, want)
	}

	out, err = run(t, "inspect", "--reader", "ljspeech", "--data-dir", data, "--log-level", "warn")
	require.NoError(t, err)
	require.Contains(t, out, "22050Hz")
}

func TestErrors(t *testing.T) {
	data := ljspeechFixture(t)
	work := t.TempDir()
	for _, args := range [][]string{
		{"dump", "--reader", "ljspeech", "--data-dir", data},
		{"dump", "--reader", "timit", "--data-dir", data, "--out", work},
		{"dump", "--reader", "ljspeech,vctk", "--data-dir", data, "--out", work},
		{"export", "--reader", "ljspeech", "--data-dir", data, "--target", "codec", "--path", filepath.Join(work, "x.tfrecord")},
		{"export", "--reader", "ljspeech", "--data-dir", data},
		{"inspect", "--dump", filepath.Join(work, "missing")},
		{"inspect", "--reader", "ljspeech", "--data-dir", data, "--log-level", "loud"},
	} {
		_, err := run(t, args...)
		require.Error(t, err, "%v", args)
	}
}
