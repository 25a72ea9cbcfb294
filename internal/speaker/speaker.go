// Package speaker holds the per-speaker source tier lists.
//
// A Profile is built once at startup and never mutated; every request reads
// the same ordered candidate list.
package speaker

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/nadzzz/avatarvoice/internal/config"
)

// Kind tags a source candidate.
type Kind string

const (
	TrainedModel     Kind = "trained_model"
	ReferenceFile    Kind = "reference_file"
	SegmentDirectory Kind = "segment_directory"
	FallbackFile     Kind = "fallback_file"
	StockVoice       Kind = "stock_voice"
	SyntheticTone    Kind = "synthetic_tone"
)

var kinds = []Kind{TrainedModel, ReferenceFile, SegmentDirectory, FallbackFile, StockVoice, SyntheticTone}

// engines are the identifiers reported to clients for each tier.
var engines = map[Kind]string{
	TrainedModel:     "piper_custom",
	ReferenceFile:    "reference_file",
	SegmentDirectory: "voice_segments",
	FallbackFile:     "fallback_file",
	StockVoice:       "piper_fallback",
	SyntheticTone:    "simple_generated",
}

// Candidate is one audio source in a speaker's priority list.
type Candidate struct {
	Kind Kind

	// TrainedModel
	ModelPath  string
	ConfigPath string

	// ReferenceFile, FallbackFile, SegmentDirectory
	Path string

	// StockVoice
	Voice    string
	Endpoint string
}

// Available reports whether the candidate can be attempted. It checks for
// existence only; content problems surface during materialization.
func (c Candidate) Available() bool {
	switch c.Kind {
	case TrainedModel:
		return isFile(c.ModelPath) && isFile(c.ConfigPath)
	case ReferenceFile, FallbackFile:
		return isFile(c.Path)
	case SegmentDirectory:
		fi, err := os.Stat(c.Path)
		return err == nil && fi.IsDir()
	case StockVoice:
		return c.Endpoint != "" && c.Voice != ""
	case SyntheticTone:
		return true
	}
	return false
}

// Engine is the client-facing identifier of the tier.
func (c Candidate) Engine() string {
	return engines[c.Kind]
}

// Tier is the label used in logs and metrics.
func (c Candidate) Tier() string {
	return string(c.Kind)
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Profile is a speaker id plus its ordered candidates.
type Profile struct {
	id         string
	candidates []Candidate
}

// NewProfile builds a profile. A SyntheticTone tier is appended when the list
// does not already end with one, so every chain has a tier that cannot fail.
func NewProfile(id string, candidates []Candidate) *Profile {
	cs := slices.Clone(candidates)
	if len(cs) == 0 || cs[len(cs)-1].Kind != SyntheticTone {
		cs = append(cs, Candidate{Kind: SyntheticTone})
	}
	return &Profile{id: id, candidates: cs}
}

// ID returns the speaker id.
func (p *Profile) ID() string { return p.id }

// Candidates returns a copy of the ordered tier list.
func (p *Profile) Candidates() []Candidate { return slices.Clone(p.candidates) }

// TierStatus describes one tier in an availability report.
type TierStatus struct {
	Tier      string `json:"tier"`
	Engine    string `json:"engine"`
	Source    string `json:"source,omitempty"`
	Available bool   `json:"available"`
}

// Report lists every tier with its current availability.
func (p *Profile) Report() []TierStatus {
	out := make([]TierStatus, 0, len(p.candidates))
	for _, c := range p.candidates {
		src := c.Path
		switch c.Kind {
		case TrainedModel:
			src = c.ModelPath
		case StockVoice:
			src = c.Voice
		}
		out = append(out, TierStatus{
			Tier:      c.Tier(),
			Engine:    c.Engine(),
			Source:    src,
			Available: c.Available(),
		})
	}
	return out
}

// Registry maps speaker ids to profiles.
type Registry struct {
	profiles map[string]*Profile
	ids      []string
}

// NewRegistry indexes the given profiles.
func NewRegistry(profiles ...*Profile) *Registry {
	r := &Registry{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.id] = p
		r.ids = append(r.ids, p.id)
	}
	sort.Strings(r.ids)
	return r
}

// Lookup returns the profile for id.
func (r *Registry) Lookup(id string) (*Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// IDs returns the configured speaker ids in sorted order.
func (r *Registry) IDs() []string { return slices.Clone(r.ids) }

// FromConfig builds the registry from the speakers section. Relative paths are
// resolved against tts.base_dir, and stock voice tiers take the configured
// Wyoming endpoint.
func FromConfig(cfg *config.Config) (*Registry, error) {
	profiles := make([]*Profile, 0, len(cfg.Speakers))
	for id, sc := range cfg.Speakers {
		cs := make([]Candidate, 0, len(sc.Tiers))
		for i, tc := range sc.Tiers {
			kind := Kind(tc.Type)
			if !slices.Contains(kinds, kind) {
				return nil, fmt.Errorf("speaker %s tier %d: unknown type %q", id, i, tc.Type)
			}
			c := Candidate{
				Kind:       kind,
				ModelPath:  abs(cfg.TTS.BaseDir, tc.ModelPath),
				ConfigPath: abs(cfg.TTS.BaseDir, tc.ConfigPath),
				Path:       abs(cfg.TTS.BaseDir, tc.Path),
				Voice:      tc.Voice,
			}
			if kind == StockVoice {
				c.Endpoint = cfg.TTS.Piper.Endpoint
			}
			cs = append(cs, c)
		}
		profiles = append(profiles, NewProfile(id, cs))
	}
	return NewRegistry(profiles...), nil
}

func abs(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
