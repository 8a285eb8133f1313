/* grapheme maps free text onto the closed grapheme vocabulary used as acoustic model input.
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
package grapheme

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Graphemes is the vocabulary. Label i+1 encodes Graphemes[i], label 0 is padding.
// It does not contain digits, transcripts have to be spelled out before labeling.
const Graphemes = "abcdefghijklmnopqrstuvwxyz !?,."

// Vocabs is the number of labels including padding.
const Vocabs = len(Graphemes) + 1

// replacements maps each listed character to its substitute, the empty string deletes.
var replacements = map[string]string{
	"\"'()-:;[]’“”": "",
	"àâ":            "a",
	"èéê":           "e",
	"ü":             "u",
}

var (
	replacer = map[rune]string{}
	labels   = map[rune]int{}
)

func init() {
	for chars, out := range replacements {
		for _, r := range chars {
			replacer[r] = out
		}
	}
	for idx, r := range Graphemes {
		labels[r] = idx + 1
	}
}

// InvalidGraphemeError is returned in strict mode for characters outside the vocabulary.
type InvalidGraphemeError struct {
	Char rune
	Text string
}

func (i *InvalidGraphemeError) Error() string {
	return fmt.Sprintf("invalid grapheme %q in %q", i.Char, i.Text)
}

// InvalidLabelError is returned when recovering a label outside [0, Vocabs).
type InvalidLabelError struct {
	Label int
}

func (i *InvalidLabelError) Error() string {
	return fmt.Sprintf("invalid label %v, wanted [0, %v)", i.Label, Vocabs)
}

// Mode selects what happens to characters outside the vocabulary.
type Mode int

const (
	// Strict fails with InvalidGraphemeError.
	Strict Mode = iota
	// Lenient drops the character and logs it.
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Normalizer converts text to graphemes and labels. It is safe for concurrent use.
type Normalizer struct {
	mode   Mode
	fold   bool
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(n *Normalizer)

// WithMode sets the error mode, Strict by default. Modes other than Lenient fail like Strict.
func WithMode(m Mode) Option {
	return func(n *Normalizer) {
		n.mode = m
	}
}

// WithUnicodeFolding strips combining marks from characters missing from the substitution
// table, so 'ñ' becomes 'n'. The folded form is only used if it is in the vocabulary.
func WithUnicodeFolding() Option {
	return func(n *Normalizer) {
		n.fold = true
	}
}

// WithLogger sets the logger receiving lenient mode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// New returns a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{mode: Strict}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

func fold(r rune) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, string(r))
	if err != nil {
		return ""
	}
	return folded
}

func inVocabulary(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if _, found := labels[r]; !found {
			return false
		}
	}
	return true
}

// Normalize lower cases the text and maps every character into the vocabulary.
func (n *Normalizer) Normalize(text string) (string, error) {
	buf := &strings.Builder{}
	for _, r := range text {
		r = unicode.ToLower(r)
		if sub, found := replacer[r]; found {
			buf.WriteString(sub)
			continue
		}
		if _, found := labels[r]; found {
			buf.WriteRune(r)
			continue
		}
		if n.fold {
			if folded := fold(r); inVocabulary(folded) {
				buf.WriteString(folded)
				continue
			}
		}
		if n.mode != Lenient {
			return "", &InvalidGraphemeError{Char: r, Text: text}
		}
		n.logger.Warn("dropping invalid grapheme", "char", string(r), "text", text)
	}
	return buf.String(), nil
}

// Labeling normalizes the text and returns its labels, all of them at least 1.
func (n *Normalizer) Labeling(text string) ([]int, error) {
	normalized, err := n.Normalize(text)
	if err != nil {
		return nil, err
	}
	res := make([]int, 0, len(normalized))
	for _, r := range normalized {
		res = append(res, labels[r])
	}
	return res, nil
}

// Recover converts labels back to normalized text, skipping padding.
func Recover(labels []int) (string, error) {
	buf := &strings.Builder{}
	for _, label := range labels {
		if label == 0 {
			continue
		}
		if label < 0 || label >= Vocabs {
			return "", &InvalidLabelError{Label: label}
		}
		buf.WriteByte(Graphemes[label-1])
	}
	return buf.String(), nil
}

// Recover converts labels back to normalized text, see the package level Recover.
func (n *Normalizer) Recover(labels []int) (string, error) {
	return Recover(labels)
}
