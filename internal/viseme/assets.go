package viseme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/frames"
	"github.com/nadzzz/avatarvoice/internal/lipsync"
	"github.com/nadzzz/avatarvoice/internal/metrics"
	"github.com/nadzzz/avatarvoice/internal/resolve"
)

// Tier labels of image candidates.
const (
	TierNamed   = "named"
	TierFrame   = "frame"
	TierNeutral = "neutral"
)

// Assets is the scanned image tree of one avatar:
//
//	<base>/<avatar>/2d/mouth_*.png                  named expressions
//	<base>/<avatar>/2d/full/<avatar>_frame_NNNN.png sequential frames
//	<base>/<avatar>/2d/<avatar>_neutral_default.png neutral pose
type Assets struct {
	Avatar string
	Root   string
	Full   string

	mouth  map[string]string // upper-cased file name -> path
	frames []string
}

// Scan lists the avatar's named mouth images and frames once.
func Scan(base, avatar string) (*Assets, error) {
	root := filepath.Join(base, avatar, "2d")
	a := &Assets{
		Avatar: avatar,
		Root:   root,
		Full:   filepath.Join(root, "full"),
		mouth:  make(map[string]string),
	}

	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	for _, e := range entries {
		name := strings.ToUpper(e.Name())
		if e.Type().IsRegular() && strings.HasPrefix(name, "MOUTH_") && strings.HasSuffix(name, ".PNG") {
			a.mouth[name] = filepath.Join(root, e.Name())
		}
	}

	set, err := frames.Snapshot(a.Full, avatar)
	if err != nil {
		return nil, err
	}
	for _, f := range set.Frames {
		a.frames = append(a.frames, f.Path)
	}
	return a, nil
}

type source struct {
	path string
	tier string
	// terminal candidates are accepted without an existence check.
	terminal bool
}

func (s source) valid() bool {
	if s.terminal {
		return true
	}
	if s.path == "" {
		return false
	}
	fi, err := os.Stat(s.path)
	return err == nil && fi.Mode().IsRegular()
}

func (a *Assets) named(keys ...string) []source {
	out := make([]source, 0, len(keys))
	for _, k := range keys {
		out = append(out, source{path: a.mouth["MOUTH_"+k+".PNG"], tier: TierNamed})
	}
	return out
}

func (a *Assets) frame(i int) source {
	return source{path: filepath.Join(a.Full, frames.FrameName(a.Avatar, i)), tier: TierFrame}
}

func (a *Assets) neutralPath() string {
	return filepath.Join(a.Root, a.Avatar+"_neutral_default.png")
}

// chain returns the candidates tried for v before falling back to rest.
func (a *Assets) chain(v Viseme) []source {
	switch v {
	case Rest:
		cs := []source{a.frame(0), a.frame(1), a.frame(2), {path: a.neutralPath(), tier: TierNeutral}}
		for _, f := range a.frames {
			cs = append(cs, source{path: f, tier: TierFrame})
		}
		return cs
	case A:
		return a.named("A_TEACH", "A_EMPHASIS", "A_HAPPY", "AY")
	case E:
		return a.named("E_TEACH", "E_EMPHASIS")
	case I:
		return a.named("I_TEACH", "I_EMPHASIS")
	case O:
		return append([]source{{path: filepath.Join(a.Full, a.Avatar+"_O.png"), tier: TierNamed}}, a.named("OO")...)
	case U:
		return a.named("U_TEACH", "OO", "UH")
	case MBP:
		return append(a.named("MBP"), a.frame(1))
	case FV:
		return a.named("FV", "AY")
	case TH:
		return a.named("TH")
	case DNTL:
		return a.named("L", "D", "T")
	case KG:
		return a.named("NG", "K", "G")
	case S:
		return a.named("S", "SH")
	case WQ:
		return a.named("OO", "W", "Q")
	case R:
		return a.named("UH", "ER")
	}
	return a.named(string(v))
}

// Selection is the image chosen for each viseme of one avatar.
type Selection struct {
	Sources map[Viseme]string
	// Gaps lists visemes that had no dedicated image and use the rest pose,
	// or REST itself when no image exists at all.
	Gaps []Viseme
}

// Resolve picks an image for every viseme in set. REST is resolved first and
// is the final fallback of every other chain, so resolution never fails.
func (a *Assets) Resolve(ctx context.Context, set []Viseme) (*Selection, error) {
	r := &resolve.Resolver[source, string]{
		Name:        "viseme",
		Valid:       source.valid,
		Materialize: func(_ context.Context, s source) (string, error) { return s.path, nil },
		Tier:        func(s source) string { return s.tier },
		Observer:    metrics.Tiers{},
	}
	logger := slog.With("avatar", a.Avatar)

	sel := &Selection{Sources: make(map[Viseme]string, len(set))}
	gap := func(v Viseme) {
		sel.Gaps = append(sel.Gaps, v)
		metrics.RecordAssetGap(a.Avatar, string(v))
		logger.Warn("no dedicated image for viseme, using rest pose", "viseme", v, "kind", errs.KindAssetGap)
	}

	restChain := append(a.chain(Rest), source{path: a.neutralPath(), tier: TierNeutral, terminal: true})
	rest, err := r.Resolve(ctx, a.Avatar+"/"+string(Rest), restChain)
	if err != nil {
		return nil, err
	}
	restPath := rest.Value
	restGap := rest.Candidate.terminal

	for _, v := range set {
		if v == Rest {
			sel.Sources[Rest] = restPath
			if restGap {
				gap(Rest)
			}
			continue
		}

		chain := append(a.chain(v), source{path: restPath, tier: TierNeutral, terminal: true})
		got, err := r.Resolve(ctx, a.Avatar+"/"+string(v), chain)
		if err != nil {
			return nil, err
		}
		sel.Sources[v] = got.Value
		if got.Candidate.terminal {
			gap(v)
		}
	}
	return sel, nil
}

// AvatarManifest is one avatar's entry in manifest.json.
type AvatarManifest struct {
	SelectedSources map[Viseme]string `json:"selected_sources"`
	Flattened       map[Viseme]string `json:"flattened"`
	Gaps            []Viseme          `json:"gaps"`
}

// Manifest maps avatar ids to their resolved visemes.
type Manifest map[string]AvatarManifest

// ManifestSet is the viseme set written to manifest.json.
var ManifestSet = []Viseme{Rest, A, E, I, O, U, MBP, FV, TH, DNTL, KG, S, WQ, R}

// TimelineGaps returns the gaps among the visemes the lip-sync timeline
// drives. Those show on every utterance, so a rest-pose stand-in is visible.
func (m AvatarManifest) TimelineGaps() []Viseme {
	gap := make(map[Viseme]bool, len(m.Gaps))
	for _, v := range m.Gaps {
		gap[v] = true
	}
	var out []Viseme
	seen := make(map[Viseme]bool)
	for _, c := range []lipsync.Class{lipsync.VowelOpen, lipsync.BilabialClosure, lipsync.MidArticulation, lipsync.Rest} {
		v := ForClass(c)
		if gap[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Build scans and resolves one avatar under base for set, or ManifestSet when
// set is empty. With flatten set, every selected image that exists is copied to
// 2d/visemes_flat/<avatar>_<VISEME>.png.
func Build(ctx context.Context, base, avatar string, set []Viseme, flatten bool) (AvatarManifest, error) {
	m := AvatarManifest{Flattened: map[Viseme]string{}, Gaps: []Viseme{}}
	if len(set) == 0 {
		set = ManifestSet
	}

	assets, err := Scan(base, avatar)
	if err != nil {
		return m, err
	}
	sel, err := assets.Resolve(ctx, set)
	if err != nil {
		return m, err
	}
	m.SelectedSources = sel.Sources
	m.Gaps = append(m.Gaps, sel.Gaps...)

	if !flatten {
		return m, nil
	}

	outDir := filepath.Join(assets.Root, "visemes_flat")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return m, fmt.Errorf("creating %s: %w", outDir, err)
	}
	for _, v := range set {
		src := sel.Sources[v]
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(outDir, fmt.Sprintf("%s_%s.png", avatar, v))
		if err := frames.CopyFile(src, dst); err != nil {
			return m, fmt.Errorf("flattening %s: %w", v, err)
		}
		m.Flattened[v] = dst
	}
	return m, nil
}

// Write stores the manifest as indented JSON.
func (m Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
