package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "with cause",
			err:      Wrap(KindExternalTool, "piper", "synthesis failed", errors.New("exit status 1")),
			contains: []string{"[external_tool:piper]", "synthesis failed", "exit status 1"},
		},
		{
			name:     "without cause",
			err:      New(KindAssetGap, "viseme", "no candidate for TH"),
			contains: []string{"[asset_gap:viseme]", "no candidate for TH"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, substr := range tt.contains {
				assert.Contains(t, tt.err.Error(), substr)
			}
		})
	}
}

func TestWrap_KeepsInnermostKind(t *testing.T) {
	inner := New(KindContainerParse, "wav", "missing data chunk")
	outer := Wrap(KindExternalTool, "materialize", "reading audio", fmt.Errorf("tier: %w", inner))

	assert.Equal(t, KindContainerParse, outer.Kind)
	assert.Nil(t, Wrap(KindInternal, "op", "msg", nil))
}

func TestWrap_Unwrap(t *testing.T) {
	original := errors.New("original")
	wrapped := Wrap(KindExternalTool, "test", "wrapped", original)

	assert.ErrorIs(t, wrapped, original)
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"direct match", New(KindInput, "op", "msg"), KindInput, true},
		{"direct mismatch", New(KindInput, "op", "msg"), KindExternalTool, false},
		{"wrapped match", fmt.Errorf("outer: %w", New(KindAssetGap, "op", "msg")), KindAssetGap, true},
		{"plain error", errors.New("plain"), KindInput, false},
		{"nil", nil, KindInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsKind(tt.err, tt.kind))
		})
	}
}

func TestInput_CodeAndAllowed(t *testing.T) {
	err := fmt.Errorf("validate: %w", Input(CodeUnprocessable, "speaker", "unsupported speaker", "kelly", "ken"))

	assert.Equal(t, KindInput, KindOf(err))
	assert.Equal(t, CodeUnprocessable, CodeOf(err))
	assert.Equal(t, []string{"kelly", "ken"}, AllowedOf(err))

	assert.Equal(t, KindInternal, KindOf(errors.New("x")))
	assert.Equal(t, CodeNone, CodeOf(errors.New("x")))
	assert.Nil(t, AllowedOf(errors.New("x")))
}
