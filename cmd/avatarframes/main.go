// Avatarframes prepares avatar image assets offline. It reduces each avatar's
// animation frames to its configured budget and resolves the viseme image set
// into manifest.json.
//
// Usage:
//
//	avatarframes reduce [avatar...]
//	avatarframes visemes --flatten --viseme A,MBP,E,REST --strict
//	avatarframes watch
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/avatarvoice/internal/config"
	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/frames"
	"github.com/nadzzz/avatarvoice/internal/viseme"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	var (
		configFile string
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:     "avatarframes",
		Short:   "Reduce avatar animation frames and build the viseme manifest",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(configFile); err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging)
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/avatarvoice.yaml)")

	reduceCmd := &cobra.Command{
		Use:   "reduce [avatar...]",
		Short: "Reduce each avatar's frames to its configured target",
		Long: `Reduce keeps an evenly spaced subset of each avatar's full-body frames,
renames them sequentially and backfills missing special frames from the first
kept frame. Running it twice changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			avatars, err := selectAvatars(cfg, args)
			if err != nil {
				return err
			}
			return reduceAll(cmd.Context(), cfg, avatars)
		},
	}

	var (
		flatten bool
		strict  bool
		names   []string
	)
	visemesCmd := &cobra.Command{
		Use:   "visemes [avatar...]",
		Short: "Resolve viseme images and write manifest.json",
		Long: `Visemes picks an image for every viseme of each avatar, falling back through
related expressions to the rest pose, and records the choice in manifest.json.
--viseme limits the manifest to the named visemes (core or extended).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			avatars, err := selectAvatars(cfg, args)
			if err != nil {
				return err
			}
			set, err := parseVisemes(names)
			if err != nil {
				return err
			}
			return buildManifest(cmd.Context(), cfg, avatars, set, flatten, strict)
		},
	}
	visemesCmd.Flags().BoolVar(&flatten, "flatten", false, "copy selected images to 2d/visemes_flat")
	visemesCmd.Flags().BoolVar(&strict, "strict", false, "fail when a viseme the lip-sync timeline uses has no image")
	visemesCmd.Flags().StringSliceVar(&names, "viseme", nil, "visemes to resolve (default: the 14 core visemes)")

	watchCmd := &cobra.Command{
		Use:   "watch [avatar...]",
		Short: "Reduce frames whenever an avatar's frame directory changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			avatars, err := selectAvatars(cfg, args)
			if err != nil {
				return err
			}
			g, gctx := errgroup.WithContext(cmd.Context())
			for _, avatar := range avatars {
				dir := fullDir(cfg, avatar)
				target := cfg.Frames.Avatars[avatar].Target
				g.Go(func() error {
					slog.Info("watching frames", "avatar", avatar, "dir", dir)
					return frames.Watch(gctx, dir, cfg.Frames.Debounce, func(ctx context.Context) error {
						_, err := frames.Apply(ctx, dir, avatar, target)
						return err
					})
				})
			}
			return g.Wait()
		},
	}

	rootCmd.AddCommand(reduceCmd, visemesCmd, watchCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("avatarframes failed", "error", err)
		os.Exit(1)
	}
}

// selectAvatars returns the named avatars, or every configured one when none
// are named.
func selectAvatars(cfg *config.Config, names []string) ([]string, error) {
	if len(names) == 0 {
		for name := range cfg.Frames.Avatars {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	for _, name := range names {
		if _, ok := cfg.Frames.Avatars[name]; !ok {
			return nil, fmt.Errorf("avatar %q is not configured", name)
		}
	}
	return names, nil
}

func fullDir(cfg *config.Config, avatar string) string {
	return filepath.Join(cfg.Frames.AssetsDir, avatar, "2d", "full")
}

func reduceAll(ctx context.Context, cfg *config.Config, avatars []string) error {
	results := make([]*frames.Result, len(avatars))
	g, gctx := errgroup.WithContext(ctx)
	for i, avatar := range avatars {
		g.Go(func() error {
			res, err := frames.Apply(gctx, fullDir(cfg, avatar), avatar, cfg.Frames.Avatars[avatar].Target)
			if err != nil {
				return fmt.Errorf("%s: %w", avatar, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, res := range results {
		fmt.Printf("%-8s %5d -> %-5d renumbered=%t backfilled=%v\n", res.Avatar, res.Before, res.After, res.Renumbered, res.Backfilled)
	}
	return nil
}

func parseVisemes(names []string) ([]viseme.Viseme, error) {
	var set []viseme.Viseme
	for _, n := range names {
		v, err := viseme.Parse(n)
		if err != nil {
			return nil, fmt.Errorf("%w (allowed: %s)", err, strings.Join(errs.AllowedOf(err), ", "))
		}
		set = append(set, v)
	}
	return set, nil
}

func buildManifest(ctx context.Context, cfg *config.Config, avatars []string, set []viseme.Viseme, flatten, strict bool) error {
	manifest := make(viseme.Manifest, len(avatars))
	for _, avatar := range avatars {
		m, err := viseme.Build(ctx, cfg.Frames.AssetsDir, avatar, set, flatten)
		if err != nil {
			return fmt.Errorf("%s: %w", avatar, err)
		}
		if len(m.Gaps) > 0 {
			slog.Warn("visemes fell back to the rest pose", "avatar", avatar, "gaps", m.Gaps)
		}
		if missing := m.TimelineGaps(); len(missing) > 0 && strict {
			return fmt.Errorf("%s: lip-sync visemes without an image: %v", avatar, missing)
		}
		manifest[avatar] = m
	}

	path := filepath.Join(cfg.Frames.AssetsDir, "manifest.json")
	if err := manifest.Write(path); err != nil {
		return err
	}
	slog.Info("manifest written", "path", path, "avatars", len(avatars))
	return nil
}
