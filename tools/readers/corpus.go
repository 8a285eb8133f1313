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
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/revsic/speechset/tools/signals"
)

// Default sample rates of the supported corpora.
const (
	LJSpeechRate    signals.Hz = 22050
	LibriTTSRate    signals.Hz = 24000
	LibriSpeechRate signals.Hz = 16000
	VCTKRate        signals.Hz = 48000
)

type transcript struct {
	speaker int
	text    string
}

// Corpus is a Reader over audio files and transcripts on disk.
type Corpus struct {
	name     string
	rate     signals.Hz
	speakers []string
	keys     []string
	table    map[string]transcript
	logger   *slog.Logger
}

func newCorpus(name string, defaultRate signals.Hz, opts Options) *Corpus {
	rate := opts.SampleRate
	if rate == 0 {
		rate = defaultRate
	}
	return &Corpus{
		name:   name,
		rate:   rate,
		table:  map[string]transcript{},
		logger: opts.logger(),
	}
}

// Name returns the corpus name.
func (c *Corpus) Name() string {
	return c.name
}

// SampleRate returns the rate loaded audio has.
func (c *Corpus) SampleRate() signals.Hz {
	return c.rate
}

// Keys returns the audio paths in discovery order.
func (c *Corpus) Keys() []string {
	return c.keys
}

// Speakers returns the speaker names indexed by speaker id.
func (c *Corpus) Speakers() []string {
	return c.speakers
}

// utterance returns the file name of key without directory and extension.
func utterance(key string) string {
	base := filepath.Base(key)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Lookup returns the speaker id and transcript of key.
func (c *Corpus) Lookup(key string) (int, string, error) {
	entry, found := c.table[utterance(key)]
	if !found {
		return UnknownSpeaker, "", &MissingKeyError{Key: key}
	}
	return entry.speaker, entry.text, nil
}

// Load reads and resamples the audio of key. Keys without transcript load with
// UnknownSpeaker and an empty text.
func (c *Corpus) Load(key string) (RawSample, error) {
	audio, err := signals.Load(key, c.rate)
	if err != nil {
		return RawSample{}, &ReaderIOError{Key: key, Err: err}
	}
	speaker, text, err := c.Lookup(key)
	if err != nil {
		c.logger.Debug("missing transcript", "corpus", c.name, "key", key)
	}
	return RawSample{
		SpeakerID: speaker,
		Text:      text,
		Audio:     audio,
	}, nil
}

func (c *Corpus) addFiles(pattern string) error {
	matches, err := doublestar.Glob(pattern)
	if err != nil {
		return err
	}
	sort.Strings(matches)
	c.keys = append(c.keys, matches...)
	return nil
}

// subdirs returns the sorted names of the directories in dir.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	res := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			res = append(res, entry.Name())
		}
	}
	return res, nil
}

// readRows calls f with each non empty line of the file at path.
func readRows(path string, f func(row string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return scanRows(file, func(row string) error {
		if err := f(row); err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		return nil
	})
}

func scanRows(r io.Reader, f func(row string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		row := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(row) == "" {
			continue
		}
		if err := f(row); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// LJSpeech reads the LJ Speech corpus: wavs/*.wav and metadata.csv rows of
// name|raw|normalized. It has the single speaker "ljspeech".
func LJSpeech(dir string, opts Options) (*Corpus, error) {
	c := newCorpus("ljspeech", LJSpeechRate, opts)
	c.speakers = []string{"ljspeech"}
	if err := c.addFiles(filepath.Join(dir, "wavs", "*.wav")); err != nil {
		return nil, err
	}
	if err := readRows(filepath.Join(dir, "metadata.csv"), func(row string) error {
		fields := strings.Split(row, "|")
		if len(fields) != 3 {
			return fmt.Errorf("got %v fields in %q, wanted 3", len(fields), row)
		}
		c.table[fields[0]] = transcript{speaker: 0, text: fields[2]}
		return nil
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// LibriTTS reads the LibriTTS corpus: <speaker>/<chapter>/*.wav and
// <speaker>/<chapter>/<speaker>_<chapter>.trans.tsv rows of file, raw and normalized text.
func LibriTTS(dir string, opts Options) (*Corpus, error) {
	c := newCorpus("libritts", LibriTTSRate, opts)
	return c.readChapters(dir, "*.wav", "*.trans.tsv", func(row string) (string, string, error) {
		fields := strings.Split(row, "\t")
		if len(fields) != 3 {
			return "", "", fmt.Errorf("got %v fields in %q, wanted 3", len(fields), row)
		}
		return fields[0], fields[2], nil
	})
}

// LibriSpeech reads the LibriSpeech corpus: <speaker>/<chapter>/*.flac and
// <speaker>/<chapter>/<speaker>-<chapter>.trans.txt rows of file followed by the words.
func LibriSpeech(dir string, opts Options) (*Corpus, error) {
	c := newCorpus("librispeech", LibriSpeechRate, opts)
	return c.readChapters(dir, "*.flac", "*.trans.txt", func(row string) (string, string, error) {
		name, text, _ := strings.Cut(row, " ")
		return name, strings.TrimSpace(text), nil
	})
}

func (c *Corpus) readChapters(dir, audioPattern, transPattern string, parse func(row string) (string, string, error)) (*Corpus, error) {
	speakers, err := subdirs(dir)
	if err != nil {
		return nil, err
	}
	c.speakers = speakers
	for sid, speaker := range speakers {
		if err := c.addFiles(filepath.Join(dir, speaker, "*", audioPattern)); err != nil {
			return nil, err
		}
		transcripts, err := doublestar.Glob(filepath.Join(dir, speaker, "*", transPattern))
		if err != nil {
			return nil, err
		}
		sort.Strings(transcripts)
		for _, path := range transcripts {
			if err := readRows(path, func(row string) error {
				name, text, err := parse(row)
				if err != nil {
					return err
				}
				c.table[name] = transcript{speaker: sid, text: text}
				return nil
			}); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// VCTK reads the VCTK corpus: wav48/<speaker>/*.wav with transcripts in
// txt/<speaker>/<name>.txt. Speakers without a txt directory keep their id but have no keys.
func VCTK(dir string, opts Options) (*Corpus, error) {
	c := newCorpus("vctk", VCTKRate, opts)
	wavDir, txtDir := filepath.Join(dir, "wav48"), filepath.Join(dir, "txt")
	speakers, err := subdirs(wavDir)
	if err != nil {
		return nil, err
	}
	c.speakers = speakers
	for sid, speaker := range speakers {
		if _, err := os.Stat(filepath.Join(txtDir, speaker)); err != nil {
			c.logger.Debug("skipping speaker without transcripts", "speaker", speaker)
			continue
		}
		if err := c.addFiles(filepath.Join(wavDir, speaker, "*.wav")); err != nil {
			return nil, err
		}
		texts, err := doublestar.Glob(filepath.Join(txtDir, speaker, "*.txt"))
		if err != nil {
			return nil, err
		}
		for _, path := range texts {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			c.table[utterance(path)] = transcript{speaker: sid, text: strings.TrimSpace(string(data))}
		}
	}
	return c, nil
}
