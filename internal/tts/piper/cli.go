package piper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nadzzz/avatarvoice/internal/config"
	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/tts"
)

// stderrLimit caps how much tool output is kept for error messages.
const stderrLimit = 2048

// CLI implements tts.Synthesizer by running the piper binary against a
// trained model:
//
//	piper --model M --config C --output_file TMP   (text on stdin)
//
// The output file is created per call and removed on every exit path.
// Cancellation of ctx kills the process.
type CLI struct {
	Binary  string
	TempDir string // "" uses os.TempDir
}

// NewCLI creates a CLI engine from config.
func NewCLI(cfg config.PiperConfig) *CLI {
	bin := cfg.Binary
	if bin == "" {
		bin = "piper"
	}
	return &CLI{Binary: bin, TempDir: cfg.TempDir}
}

// Synthesize runs piper and returns the WAV it produced.
func (c *CLI) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	const op = "piper.cli"

	if opts.Model == "" || opts.Config == "" {
		return nil, errs.New(errs.KindExternalTool, op, "model and config paths are required")
	}

	tmp, err := os.CreateTemp(c.TempDir, "avatarvoice-*.wav")
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, op, "creating output file", err)
	}
	out := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, c.Binary,
		"--model", opts.Model,
		"--config", opts.Config,
		"--output_file", out,
	)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, n: stderrLimit}
	// Children of a killed piper can hold stderr open.
	cmd.WaitDelay = time.Second

	slog.Debug("piper cli", "binary", c.Binary, "model", opts.Model, "text_length", len(text))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		msg := "piper exited with error"
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg = fmt.Sprintf("%s: %s", msg, s)
		}
		return nil, errs.Wrap(errs.KindExternalTool, op, msg, err)
	}

	audio, err := os.ReadFile(out)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, op, "reading output file", err)
	}
	if len(audio) == 0 {
		return nil, errs.New(errs.KindExternalTool, op, "piper produced an empty file")
	}

	return &tts.SynthesizeResult{Audio: audio}, nil
}

// Close is a no-op; each call owns its process.
func (c *CLI) Close() error { return nil }

// limitedWriter keeps the first n bytes written and discards the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.n - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
