// Package viseme defines the mouth-shape vocabulary shared with the avatar
// renderer and resolves each shape to an image asset.
package viseme

import (
	"fmt"
	"strings"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/lipsync"
)

// Viseme is a named mouth shape. The string values are part of the wire
// contract and never change.
type Viseme string

const (
	Rest Viseme = "REST"
	A    Viseme = "A"
	E    Viseme = "E"
	I    Viseme = "I"
	O    Viseme = "O"
	U    Viseme = "U"
	MBP  Viseme = "MBP"
	FV   Viseme = "FV"
	TH   Viseme = "TH"
	DNTL Viseme = "DNTL"
	KG   Viseme = "KG"
	S    Viseme = "S"
	R    Viseme = "R"
	WQ   Viseme = "WQ"
)

// Core is the base enumeration.
var Core = []Viseme{Rest, A, E, I, O, U, MBP, FV, TH, DNTL, KG, S, R, WQ}

// Extended holds the emotion and emphasis variants plus the finer consonant
// and diphthong shapes.
var Extended = []Viseme{
	"A_EMPHASIS", "A_EXCITED", "A_HAPPY", "A_QUESTION", "A_SERIOUS", "A_TEACH",
	"E_EMPHASIS", "E_EXCITED", "E_HAPPY", "E_QUESTION", "E_SERIOUS", "E_TEACH",
	"I_EMPHASIS", "I_EXCITED", "I_HAPPY", "I_QUESTION", "I_SERIOUS", "I_TEACH",
	"AW", "AY", "CH", "H", "L", "NG", "OO", "OY", "SH", "UH", "Y", "ZH",
}

// All returns Core followed by Extended.
func All() []Viseme {
	out := make([]Viseme, 0, len(Core)+len(Extended))
	out = append(out, Core...)
	return append(out, Extended...)
}

var known = func() map[Viseme]bool {
	m := make(map[Viseme]bool)
	for _, v := range All() {
		m[v] = true
	}
	return m
}()

// Parse accepts a viseme name in any case.
func Parse(s string) (Viseme, error) {
	v := Viseme(strings.ToUpper(strings.TrimSpace(s)))
	if !known[v] {
		names := make([]string, 0, len(known))
		for _, k := range All() {
			names = append(names, string(k))
		}
		return "", errs.Input(errs.CodeUnprocessable, "viseme.parse", fmt.Sprintf("unknown viseme %q", s), names...)
	}
	return v, nil
}

// ForClass maps a timeline class to the viseme the renderer shows for it.
func ForClass(c lipsync.Class) Viseme {
	switch c {
	case lipsync.VowelOpen:
		return A
	case lipsync.BilabialClosure:
		return MBP
	case lipsync.MidArticulation:
		return E
	}
	return Rest
}
