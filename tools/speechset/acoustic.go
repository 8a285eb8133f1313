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
	"github.com/revsic/speechset/tools/config"
	"github.com/revsic/speechset/tools/grapheme"
	"github.com/revsic/speechset/tools/melstft"
	"github.com/revsic/speechset/tools/readers"
)

// AcousticSample is a labeled transcript with the mel spectrogram of its utterance.
type AcousticSample struct {
	// Labels are the grapheme labels, [S].
	Labels []int
	// Mel is the log mel spectrogram, [T/hop+1][mel].
	Mel [][]float32
}

// AcousticBatch holds right zero padded acoustic samples.
type AcousticBatch struct {
	// Mel is [B][maxT][mel].
	Mel [][][]float32
	// Text is [B][maxS].
	Text [][]int
	// TextLen and MelLen are the unpadded lengths, [B].
	TextLen []int
	MelLen  []int
}

// Acoustic is the text to mel spectrogram policy.
type Acoustic struct {
	textnorm *grapheme.Normalizer
	melstft  *melstft.MelSTFT
}

// NewAcoustic returns the text to mel spectrogram policy.
func NewAcoustic(m *melstft.MelSTFT, n *grapheme.Normalizer) *Acoustic {
	return &Acoustic{
		textnorm: n,
		melstft:  m,
	}
}

// Normalize labels the transcript and transforms the audio.
func (a *Acoustic) Normalize(raw readers.RawSample) (AcousticSample, error) {
	labels, err := a.textnorm.Labeling(raw.Text)
	if err != nil {
		return AcousticSample{}, err
	}
	return AcousticSample{
		Labels: labels,
		Mel:    a.melstft.Transform(raw.Audio),
	}, nil
}

// Collate pads labels with 0 and spectrograms with zero frames up to the batch maxima.
func (a *Acoustic) Collate(bunch []AcousticSample) (AcousticBatch, error) {
	return CollateAcoustic(bunch)
}

// CollateAcoustic is Acoustic.Collate, usable without the normalizing parts.
func CollateAcoustic(bunch []AcousticSample) (AcousticBatch, error) {
	if len(bunch) == 0 {
		return AcousticBatch{}, &EmptyBatchError{Op: "acoustic"}
	}
	labels := make([][]int, len(bunch))
	specs := make([][][]float32, len(bunch))
	for idx, sample := range bunch {
		labels[idx] = sample.Labels
		specs[idx] = sample.Mel
	}
	text, textlen := padSequences(labels)
	mel, mellen, err := padFrames(specs)
	if err != nil {
		return AcousticBatch{}, err
	}
	return AcousticBatch{
		Mel:     mel,
		Text:    text,
		TextLen: textlen,
		MelLen:  mellen,
	}, nil
}

// NewAcousticDataset returns a text to mel spectrogram dataset over reader.
func NewAcousticDataset(reader readers.Reader, c config.Config, opts ...grapheme.Option) (*SpeechSet[AcousticSample, AcousticBatch], error) {
	m, err := melstft.New(c)
	if err != nil {
		return nil, err
	}
	return New(reader, NewAcoustic(m, grapheme.New(opts...))), nil
}
