// Package lipsync derives a mouth-shape timeline from text and an audio duration.
//
// It is a heuristic, not a phonemizer: every word gets an equal share of the
// audio and is split into an opening shape chosen from its first letter, a mid
// articulation, and a return to rest.
package lipsync

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Class is the coarse mouth shape of a timeline entry.
type Class string

// Wire labels sent to clients.
const (
	VowelOpen       Class = "A"
	BilabialClosure Class = "MBP"
	Rest            Class = "REST"
	MidArticulation Class = "E"
)

// Share of a word's slot taken by each opening shape.
const (
	vowelShare    = 0.3
	bilabialShare = 0.2
	restShare     = 0.1
	midEnd        = 0.7
)

// Entry is one span of the timeline. Times are seconds from the start of the audio.
type Entry struct {
	Class Class   `json:"phoneme"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word,omitempty"`
}

// Duration of the entry in seconds.
func (e Entry) Duration() float64 { return e.End - e.Start }

// Classify returns the opening shape for word and the share of the word's slot
// it occupies. The shape follows the first letter of the word; words without
// a letter rest.
func Classify(word string) (Class, float64) {
	w := strings.TrimRightFunc(strings.ToLower(word), unicode.IsPunct)
	i := strings.IndexFunc(w, unicode.IsLetter)
	if i < 0 {
		return Rest, restShare
	}
	r, _ := utf8.DecodeRuneInString(w[i:])
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return VowelOpen, vowelShare
	case 'b', 'p', 'm':
		return BilabialClosure, bilabialShare
	}
	return Rest, restShare
}

// Build splits total seconds evenly across the words of text and returns three
// entries per word. Entries are contiguous, the first starts at 0 and the last
// ends exactly at total. Text without words yields an empty timeline.
func Build(text string, total float64) []Entry {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []Entry{}
	}
	total = math.Max(total, 0)

	n := float64(len(words))
	per := total / n
	at := func(x float64) float64 {
		return math.Min(math.Max(math.Round(x*1000)/1000, 0), total)
	}

	out := make([]Entry, 0, 3*len(words))
	prev := 0.0
	for i, w := range words {
		class, share := Classify(w)
		start := float64(i) * per

		openEnd := at(start + share*per)
		midStop := at(start + midEnd*per)
		end := at(start + per)
		if i == len(words)-1 {
			end = total
		}

		out = append(out,
			Entry{Class: class, Start: prev, End: openEnd, Word: w},
			Entry{Class: MidArticulation, Start: openEnd, End: midStop, Word: w},
			Entry{Class: Rest, Start: midStop, End: end, Word: w},
		)
		prev = end
	}
	return out
}
