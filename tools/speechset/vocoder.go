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
	"github.com/revsic/speechset/tools/melstft"
	"github.com/revsic/speechset/tools/readers"
	"github.com/revsic/speechset/tools/signals"
)

// VocoderSample is a mel spectrogram with the signal it was computed from.
type VocoderSample struct {
	// Mel is [T/hop+1][mel].
	Mel [][]float32
	// Audio is [T].
	Audio signals.Float32Slice
}

// VocoderBatch holds right zero padded vocoder samples.
type VocoderBatch struct {
	// Mel is [B][maxFrames][mel].
	Mel [][][]float32
	// Audio is [B][maxT].
	Audio [][]float32
	// MelLen and AudioLen are the unpadded lengths, [B].
	MelLen   []int
	AudioLen []int
}

// Vocoder is the mel spectrogram to waveform policy. Transcripts are ignored.
type Vocoder struct {
	melstft *melstft.MelSTFT
}

// NewVocoder returns the mel spectrogram to waveform policy.
func NewVocoder(m *melstft.MelSTFT) *Vocoder {
	return &Vocoder{melstft: m}
}

// Normalize transforms the audio, keeping it as the target signal.
func (v *Vocoder) Normalize(raw readers.RawSample) (VocoderSample, error) {
	return VocoderSample{
		Mel:   v.melstft.Transform(raw.Audio),
		Audio: raw.Audio,
	}, nil
}

// Collate pads spectrograms and signals independently up to their batch maxima.
func (v *Vocoder) Collate(bunch []VocoderSample) (VocoderBatch, error) {
	return CollateVocoder(bunch)
}

// CollateVocoder is Vocoder.Collate, usable without a mel transform.
func CollateVocoder(bunch []VocoderSample) (VocoderBatch, error) {
	if len(bunch) == 0 {
		return VocoderBatch{}, &EmptyBatchError{Op: "vocoder"}
	}
	specs := make([][][]float32, len(bunch))
	audios := make([][]float32, len(bunch))
	for idx, sample := range bunch {
		specs[idx] = sample.Mel
		audios[idx] = sample.Audio
	}
	mel, mellen, err := padFrames(specs)
	if err != nil {
		return VocoderBatch{}, err
	}
	audio, audiolen := padSequences(audios)
	return VocoderBatch{
		Mel:      mel,
		Audio:    audio,
		MelLen:   mellen,
		AudioLen: audiolen,
	}, nil
}

// NewVocoderDataset returns a mel spectrogram to waveform dataset over reader.
func NewVocoderDataset(reader readers.Reader, c config.Config) (*SpeechSet[VocoderSample, VocoderBatch], error) {
	m, err := melstft.New(c)
	if err != nil {
		return nil, err
	}
	return New(reader, NewVocoder(m)), nil
}
