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

import (
	"fmt"

	"github.com/revsic/speechset/tools/signals"

	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// Exampler is implemented by samples convertible to tf.Examples.
type Exampler interface {
	ToTFExample() (*tf.Example, error)
}

func newExample() *tf.Example {
	return &tf.Example{
		Features: &tf.Features{
			Feature: map[string]*tf.Feature{},
		},
	}
}

func floatFeature(values []float32) *tf.Feature {
	return &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: values}}}
}

func int64Feature(values ...int64) *tf.Feature {
	return &tf.Feature{Kind: &tf.Feature_Int64List{Int64List: &tf.Int64List{Value: values}}}
}

func int64s(values []int) []int64 {
	res := make([]int64, len(values))
	for idx, value := range values {
		res[idx] = int64(value)
	}
	return res
}

// flattenMel returns the row major cells of mel and its [frames, bins] shape.
func flattenMel(mel [][]float32) ([]float32, []int64, error) {
	bins := 0
	if len(mel) > 0 {
		bins = len(mel[0])
	}
	flat := make([]float32, 0, len(mel)*bins)
	for idx, frame := range mel {
		if len(frame) != bins {
			return nil, nil, fmt.Errorf("frame %v has %v bins, wanted %v", idx, len(frame), bins)
		}
		flat = append(flat, frame...)
	}
	return flat, []int64{int64(len(mel)), int64(bins)}, nil
}

// ToTFExample converts the sample to a tf.Example with text, mel, mel_shape, textlen and mellen features.
func (a AcousticSample) ToTFExample() (*tf.Example, error) {
	flat, shape, err := flattenMel(a.Mel)
	if err != nil {
		return nil, err
	}
	ex := newExample()
	ex.Features.Feature["text"] = int64Feature(int64s(a.Labels)...)
	ex.Features.Feature["mel"] = floatFeature(flat)
	ex.Features.Feature["mel_shape"] = int64Feature(shape...)
	ex.Features.Feature["textlen"] = int64Feature(int64(len(a.Labels)))
	ex.Features.Feature["mellen"] = int64Feature(int64(len(a.Mel)))
	return ex, nil
}

// ToTFExample converts the sample to a tf.Example with mel, mel_shape, audio, mellen and audiolen features.
func (v VocoderSample) ToTFExample() (*tf.Example, error) {
	flat, shape, err := flattenMel(v.Mel)
	if err != nil {
		return nil, err
	}
	ex := newExample()
	ex.Features.Feature["mel"] = floatFeature(flat)
	ex.Features.Feature["mel_shape"] = int64Feature(shape...)
	ex.Features.Feature["audio"] = floatFeature(append([]float32{}, v.Audio...))
	ex.Features.Feature["mellen"] = int64Feature(int64(len(v.Mel)))
	ex.Features.Feature["audiolen"] = int64Feature(int64(len(v.Audio)))
	return ex, nil
}

// ToTFExample converts the wrapped sample and adds an ids feature.
func (s IDSample[N]) ToTFExample() (*tf.Example, error) {
	inner, ok := any(s.Sample).(Exampler)
	if !ok {
		return nil, fmt.Errorf("%T can not be converted to a tf.Example", s.Sample)
	}
	ex, err := inner.ToTFExample()
	if err != nil {
		return nil, err
	}
	ex.Features.Feature["ids"] = int64Feature(int64s(s.IDs)...)
	return ex, nil
}

// FeatureError is returned when a tf.Example lacks a feature or holds one of the wrong kind or size.
type FeatureError struct {
	Name   string
	Reason string
}

func (f *FeatureError) Error() string {
	return fmt.Sprintf("feature %q: %v", f.Name, f.Reason)
}

func feature(ex *tf.Example, name string) (*tf.Feature, error) {
	if ex == nil || ex.Features == nil {
		return nil, &FeatureError{Name: name, Reason: "example has no features"}
	}
	f, found := ex.Features.Feature[name]
	if !found || f == nil {
		return nil, &FeatureError{Name: name, Reason: "missing"}
	}
	return f, nil
}

func int64List(ex *tf.Example, name string) ([]int64, error) {
	f, err := feature(ex, name)
	if err != nil {
		return nil, err
	}
	list := f.GetInt64List()
	if list == nil {
		return nil, &FeatureError{Name: name, Reason: "not an int64 list"}
	}
	return list.Value, nil
}

func floatList(ex *tf.Example, name string) ([]float32, error) {
	f, err := feature(ex, name)
	if err != nil {
		return nil, err
	}
	list := f.GetFloatList()
	if list == nil {
		return nil, &FeatureError{Name: name, Reason: "not a float list"}
	}
	return list.Value, nil
}

// length reads a single element int64 list holding a non-negative length.
func length(ex *tf.Example, name string) (int, error) {
	values, err := int64List(ex, name)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 || values[0] < 0 {
		return 0, &FeatureError{Name: name, Reason: fmt.Sprintf("wanted one length, got %v", values)}
	}
	return int(values[0]), nil
}

func ints(values []int64) []int {
	res := make([]int, len(values))
	for idx, value := range values {
		res[idx] = int(value)
	}
	return res
}

// unflattenMel rebuilds the [frames][bins] spectrogram from the mel, mel_shape and mellen features.
func unflattenMel(ex *tf.Example) ([][]float32, error) {
	flat, err := floatList(ex, "mel")
	if err != nil {
		return nil, err
	}
	shape, err := int64List(ex, "mel_shape")
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 || shape[0] < 0 || shape[1] < 0 || shape[0]*shape[1] != int64(len(flat)) {
		return nil, &FeatureError{Name: "mel_shape", Reason: fmt.Sprintf("shape %v does not fit %v cells", shape, len(flat))}
	}
	mellen, err := length(ex, "mellen")
	if err != nil {
		return nil, err
	}
	frames, bins := int(shape[0]), int(shape[1])
	if mellen != frames {
		return nil, &FeatureError{Name: "mellen", Reason: fmt.Sprintf("%v frames, mel_shape has %v", mellen, frames)}
	}
	mel := make([][]float32, frames)
	for idx := range mel {
		mel[idx] = append([]float32{}, flat[idx*bins:(idx+1)*bins]...)
	}
	return mel, nil
}

// AcousticFromTFExample parses an example written by AcousticSample.ToTFExample.
func AcousticFromTFExample(ex *tf.Example) (AcousticSample, error) {
	text, err := int64List(ex, "text")
	if err != nil {
		return AcousticSample{}, err
	}
	textlen, err := length(ex, "textlen")
	if err != nil {
		return AcousticSample{}, err
	}
	if textlen != len(text) {
		return AcousticSample{}, &FeatureError{Name: "textlen", Reason: fmt.Sprintf("%v labels, text has %v", textlen, len(text))}
	}
	mel, err := unflattenMel(ex)
	if err != nil {
		return AcousticSample{}, err
	}
	return AcousticSample{Labels: ints(text), Mel: mel}, nil
}

// VocoderFromTFExample parses an example written by VocoderSample.ToTFExample.
func VocoderFromTFExample(ex *tf.Example) (VocoderSample, error) {
	mel, err := unflattenMel(ex)
	if err != nil {
		return VocoderSample{}, err
	}
	audio, err := floatList(ex, "audio")
	if err != nil {
		return VocoderSample{}, err
	}
	audiolen, err := length(ex, "audiolen")
	if err != nil {
		return VocoderSample{}, err
	}
	if audiolen != len(audio) {
		return VocoderSample{}, &FeatureError{Name: "audiolen", Reason: fmt.Sprintf("%v samples, audio has %v", audiolen, len(audio))}
	}
	return VocoderSample{Mel: mel, Audio: append(signals.Float32Slice{}, audio...)}, nil
}

// IDsFromTFExample returns a parser reading the ids feature next to the sample parse reads.
func IDsFromTFExample[N any](parse func(*tf.Example) (N, error)) func(*tf.Example) (IDSample[N], error) {
	return func(ex *tf.Example) (IDSample[N], error) {
		ids, err := int64List(ex, "ids")
		if err != nil {
			return IDSample[N]{}, err
		}
		sample, err := parse(ex)
		if err != nil {
			return IDSample[N]{}, err
		}
		return IDSample[N]{IDs: ints(ids), Sample: sample}, nil
	}
}
