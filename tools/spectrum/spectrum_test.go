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
package spectrum

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func genSig(freq float64, amp float64, num int, rate float64) []float64 {
	res := make([]float64, num)
	period := 1.0 / rate
	for step := range res {
		res[step] = amp * math.Sin(2*math.Pi*freq*period*float64(step))
	}
	return res
}

func TestWindows(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)
	for _, tc := range []struct {
		name string
		n    int
		want []float64
	}{
		{
			name: "hann",
			n:    4,
			want: []float64{0, 0.5, 1, 0.5},
		},
		{
			name: "hamming",
			n:    4,
			want: []float64{0.08, 0.54, 1, 0.54},
		},
	} {
		w, found := WindowByName(tc.name)
		if !found {
			t.Fatalf("Window %q not found", tc.name)
		}
		if diff := cmp.Diff(tc.want, w(tc.n), approx); diff != "" {
			t.Errorf("%v(%v) mismatch (-want +got):\n%s", tc.name, tc.n, diff)
		}
	}
	if _, found := WindowByName("blackman"); found {
		t.Errorf("Found unsupported window blackman")
	}
	if diff := cmp.Diff([]string{"hamming", "hann"}, WindowNames()); diff != "" {
		t.Errorf("WindowNames mismatch (-want +got):\n%s", diff)
	}
}

func TestReflectPad(t *testing.T) {
	for _, tc := range []struct {
		signal      []float64
		left, right int
		want        []float64
	}{
		{
			signal: []float64{1, 2, 3},
			left:   2,
			right:  2,
			want:   []float64{3, 2, 1, 2, 3, 2, 1},
		},
		{
			signal: []float64{1, 2, 3},
			left:   4,
			right:  0,
			want:   []float64{1, 2, 3, 2, 1, 2, 3},
		},
		{
			signal: []float64{5},
			left:   1,
			right:  2,
			want:   []float64{5, 5, 5, 5},
		},
		{
			signal: nil,
			left:   1,
			right:  1,
			want:   []float64{0, 0},
		},
	} {
		if diff := cmp.Diff(tc.want, ReflectPad(tc.signal, tc.left, tc.right)); diff != "" {
			t.Errorf("ReflectPad(%v, %v, %v) mismatch (-want +got):\n%s", tc.signal, tc.left, tc.right, diff)
		}
	}
}

func TestNewSTFT(t *testing.T) {
	if _, err := NewSTFT(8, 0, Hann(8)); err == nil {
		t.Errorf("NewSTFT with zero hop succeeded")
	}
	if _, err := NewSTFT(8, 2, Hann(16)); err == nil {
		t.Errorf("NewSTFT with a window longer than the FFT succeeded")
	}
	if _, err := NewSTFT(8, 2, nil); err == nil {
		t.Errorf("NewSTFT without window succeeded")
	}
}

func TestMagnitudes(t *testing.T) {
	s, err := NewSTFT(64, 16, Hann(64))
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 1, 15, 16, 17, 256, 1000} {
		mags := s.Magnitudes(genSig(1, 1, n, 64))
		if len(mags) != n/16+1 {
			t.Errorf("Got %v frames for %v samples, wanted %v", len(mags), n, n/16+1)
		}
		for _, frame := range mags {
			if len(frame) != 33 {
				t.Fatalf("Got %v bins, wanted 33", len(frame))
			}
		}
	}

	mags := s.Magnitudes(genSig(8, 1, 512, 64))
	frame := mags[len(mags)/2]
	peak := 0
	for bin := range frame {
		if frame[bin] > frame[peak] {
			peak = bin
		}
	}
	if peak != 8 {
		t.Errorf("Got peak at bin %v, wanted 8", peak)
	}
}

func TestMagnitudesZeroPadded(t *testing.T) {
	short, err := NewSTFT(32, 4, Hann(16))
	if err != nil {
		t.Fatal(err)
	}
	mags := short.Magnitudes(genSig(4, 1, 64, 32))
	if len(mags) != 17 || len(mags[0]) != 17 {
		t.Errorf("Got %vx%v magnitudes, wanted 17x17", len(mags), len(mags[0]))
	}
}
