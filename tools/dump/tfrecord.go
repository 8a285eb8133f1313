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
package dump

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"

	"github.com/ryszard/tfutils/go/tfrecord"
	"google.golang.org/protobuf/proto"

	"github.com/revsic/speechset/tools/config"
	"github.com/revsic/speechset/tools/readers"
	"github.com/revsic/speechset/tools/speechset"

	proto1 "github.com/golang/protobuf/proto"
	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// WriteTFRecord writes every sample as a tf.Example record to w, stopping at the
// first error. It returns the number of records written.
func WriteTFRecord[N speechset.Exampler](w io.Writer, samples iter.Seq2[N, error]) (int, error) {
	written := 0
	for sample, err := range samples {
		if err != nil {
			return written, err
		}
		example, err := sample.ToTFExample()
		if err != nil {
			return written, err
		}
		encoded, err := proto.Marshal(proto1.MessageV2(example))
		if err != nil {
			return written, err
		}
		if err := tfrecord.Write(w, encoded); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// ReadTFRecord reads all tf.Example records from r.
func ReadTFRecord(r io.Reader) ([]*tf.Example, error) {
	res := []*tf.Example{}
	for {
		encoded, err := tfrecord.Read(r)
		if errors.Is(err, io.EOF) {
			return res, nil
		} else if err != nil {
			return nil, err
		}
		example := &tf.Example{}
		if err := proto.Unmarshal(encoded, proto1.MessageV2(example)); err != nil {
			return nil, err
		}
		res = append(res, example)
	}
}

// Export writes the samples of ds to a TFRecord file at path, and the effective
// configuration, unbatched, to path + ".json".
func Export[N speechset.Exampler, B any](ds *speechset.SpeechSet[N, B], c config.Config, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	written, err := WriteTFRecord(f, ds.All())
	if err != nil {
		return written, err
	}
	if err := f.Close(); err != nil {
		return written, err
	}
	cf, err := os.Create(path + ".json")
	if err != nil {
		return written, err
	}
	defer cf.Close()
	unbatched := c
	unbatched.Batch = nil
	if err := unbatched.WriteJSON(cf); err != nil {
		return written, err
	}
	return written, cf.Close()
}

// Features serves samples parsed from exported tf.Examples, keyed by record index.
type Features[N any] struct {
	keys    []string
	samples []N
}

// ReadFeatures reads all records of r and parses each with parse.
func ReadFeatures[N any](r io.Reader, parse func(*tf.Example) (N, error)) (*Features[N], error) {
	examples, err := ReadTFRecord(r)
	if err != nil {
		return nil, err
	}
	f := &Features[N]{
		keys:    make([]string, len(examples)),
		samples: make([]N, len(examples)),
	}
	for idx, example := range examples {
		if f.samples[idx], err = parse(example); err != nil {
			return nil, fmt.Errorf("record %v: %w", idx, err)
		}
		f.keys[idx] = strconv.Itoa(idx)
	}
	return f, nil
}

// Keys returns the record indices in file order.
func (f *Features[N]) Keys() []string {
	return f.keys
}

// Load returns the parsed sample of the record at key.
func (f *Features[N]) Load(key string) (N, error) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || idx >= len(f.samples) || f.keys[idx] != key {
		var zero N
		return zero, &readers.ReaderIOError{Key: key, Err: &readers.MissingKeyError{Key: key}}
	}
	return f.samples[idx], nil
}

// OpenFeatures reads the TFRecord file at path into a dataset serving the parsed
// samples unchanged and batching them with collate.
func OpenFeatures[N, B any](path string, parse func(*tf.Example) (N, error), collate speechset.CollateFunc[N, B]) (*speechset.SpeechSet[N, B], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	features, err := ReadFeatures(f, parse)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return speechset.NewPrecomputed[N, B](features, collate), nil
}

// OpenAcoustic reads acoustic samples exported to path.
func OpenAcoustic(path string) (*speechset.SpeechSet[speechset.AcousticSample, speechset.AcousticBatch], error) {
	return OpenFeatures[speechset.AcousticSample, speechset.AcousticBatch](path, speechset.AcousticFromTFExample, speechset.CollateAcoustic)
}

// OpenVocoder reads vocoder samples exported to path.
func OpenVocoder(path string) (*speechset.SpeechSet[speechset.VocoderSample, speechset.VocoderBatch], error) {
	return OpenFeatures[speechset.VocoderSample, speechset.VocoderBatch](path, speechset.VocoderFromTFExample, speechset.CollateVocoder)
}

// ExportConfig loads the configuration Export wrote next to the records at path.
func ExportConfig(path string) (config.Config, error) {
	return config.Load(path + ".json")
}
