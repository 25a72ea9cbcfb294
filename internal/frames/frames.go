// Package frames reduces an avatar's animation frame corpus to a fixed budget.
//
// Reduce is the pure selection rule. Snapshot, Apply and Watch operate on the
// on-disk layout <dir>/<avatar>_frame_NNNN.png.
package frames

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/metrics"
)

// Reduce picks target items from frames spread evenly across the input. The
// first and last items are always kept. When len(frames) <= target the input
// is returned unchanged (as a copy). With target 1 the last frame is kept.
//
//	step   = N / T
//	out[k] = frames[floor(k*step)]
func Reduce[T any](frames []T, target int) []T {
	n := len(frames)
	if target <= 0 {
		return []T{}
	}
	if n <= target {
		return append([]T(nil), frames...)
	}

	step := float64(n) / float64(target)
	out := make([]T, target)
	for k := range out {
		out[k] = frames[int(float64(k)*step)]
	}
	out[0] = frames[0]
	out[target-1] = frames[n-1]
	return out
}

// Frame is one image in a corpus.
type Frame struct {
	Name string
	Path string
}

// Set is a snapshot of an avatar's corpus.
type Set struct {
	Avatar string
	Dir    string
	Frames []Frame

	// Specials maps required special names to the file that provides them.
	Specials map[string]string
}

// FrameName is the sequential file name of frame i.
func FrameName(avatar string, i int) string {
	return fmt.Sprintf("%s_frame_%04d.png", avatar, i)
}

// SpecialNames are the names animation code loads directly and which must
// exist after a reduction.
func SpecialNames(avatar string) []string {
	return []string{avatar + "_O.png", FrameName(avatar, 0)}
}

// Snapshot lists the corpus once. Frames are sorted by name.
func Snapshot(dir, avatar string) (*Set, error) {
	matches, err := filepath.Glob(filepath.Join(dir, avatar+"_frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("listing frames: %w", err)
	}
	sort.Strings(matches)

	s := &Set{Avatar: avatar, Dir: dir, Specials: make(map[string]string)}
	for _, m := range matches {
		if fi, err := os.Stat(m); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		s.Frames = append(s.Frames, Frame{Name: filepath.Base(m), Path: m})
	}
	for _, name := range SpecialNames(avatar) {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			s.Specials[name] = p
		}
	}
	return s, nil
}

// Backfill points every name missing from Specials at the first frame and
// returns the names it added.
func (s *Set) Backfill(names []string) []string {
	if len(s.Frames) == 0 {
		return nil
	}
	var added []string
	for _, name := range names {
		if _, ok := s.Specials[name]; ok {
			continue
		}
		s.Specials[name] = s.Frames[0].Path
		added = append(added, name)
	}
	return added
}

// Result summarizes an Apply.
type Result struct {
	Avatar     string   `json:"avatar"`
	Before     int      `json:"before"`
	After      int      `json:"after"`
	Renumbered bool     `json:"renumbered,omitempty"`
	Backfilled []string `json:"backfilled,omitempty"`
}

// sequential reports whether frames are named <avatar>_frame_0000 upward
// without gaps.
func sequential(avatar string, frames []Frame) bool {
	for i, f := range frames {
		if f.Name != FrameName(avatar, i) {
			return false
		}
	}
	return true
}

// Apply reduces the corpus in dir to target frames and ensures the special
// names exist. Kept frames are staged in a temporary directory under new
// sequential names, then only the snapshotted originals are removed before the
// staged frames are moved in. A corpus already within budget keeps every frame
// but is renumbered when its names are not sequential, so frame_0000 is always
// a real frame rather than a backfilled extra. Applying to an already reduced
// corpus changes nothing.
func Apply(ctx context.Context, dir, avatar string, target int) (*Result, error) {
	const op = "frames.apply"
	logger := slog.With("avatar", avatar, "dir", dir)

	set, err := Snapshot(dir, avatar)
	if err != nil {
		return nil, err
	}
	if len(set.Frames) == 0 {
		return nil, errs.New(errs.KindAssetGap, op, "no frames found in "+dir)
	}

	res := &Result{Avatar: avatar, Before: len(set.Frames)}

	kept := set.Frames
	if len(kept) > target {
		kept = Reduce(set.Frames, target)
	}
	if len(kept) != len(set.Frames) || !sequential(avatar, kept) {
		if err := replace(ctx, set, kept); err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, "replacing frames", err)
		}
		res.Renumbered = true
		logger.Info("frames rewritten", "before", res.Before, "after", len(kept), "target", target)
		if set, err = Snapshot(dir, avatar); err != nil {
			return nil, err
		}
	} else {
		logger.Debug("frames already within budget", "count", res.Before, "target", target)
	}

	for _, name := range set.Backfill(SpecialNames(avatar)) {
		if err := CopyFile(set.Specials[name], filepath.Join(dir, name)); err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, "backfilling "+name, err)
		}
		logger.Warn("special frame missing, backfilled from first frame", "name", name, "kind", errs.KindAssetGap)
		metrics.RecordAssetGap(avatar, name)
		res.Backfilled = append(res.Backfilled, name)
	}

	if len(res.Backfilled) > 0 {
		if set, err = Snapshot(dir, avatar); err != nil {
			return nil, err
		}
	}
	res.After = len(set.Frames)

	metrics.SetFramesKept(avatar, res.After)
	return res, nil
}

func replace(ctx context.Context, set *Set, kept []Frame) error {
	// Stage next to dir so the final moves are renames on the same filesystem.
	stage, err := os.MkdirTemp(filepath.Dir(set.Dir), "."+set.Avatar+"_frames-")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	for i, f := range kept {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := CopyFile(f.Path, filepath.Join(stage, FrameName(set.Avatar, i))); err != nil {
			return err
		}
	}

	for _, f := range set.Frames {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", f.Name, err)
		}
	}

	for i := range kept {
		name := FrameName(set.Avatar, i)
		if err := os.Rename(filepath.Join(stage, name), filepath.Join(set.Dir, name)); err != nil {
			return fmt.Errorf("moving %s: %w", name, err)
		}
	}
	return nil
}

// CopyFile copies src to dst, keeping the source modification time.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}
