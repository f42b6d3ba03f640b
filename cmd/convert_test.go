package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf2md/internal/config"
	"pdf2md/internal/render"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestHandleConvertErrorMissingRenderer(t *testing.T) {
	command := filepath.Join(t.TempDir(), "bin", "pdftoppm")
	withConfig(t, &config.Config{Render: config.RenderConfig{Command: command}})

	err := handleConvertError(render.NewPoppler(command, 72).Available(), zerolog.Nop())
	assert.ErrorContains(t, err, "Install poppler-utils")
}

func TestHandleConvertErrorInputFile(t *testing.T) {
	withConfig(t, &config.Config{Render: config.RenderConfig{Command: "pdftoppm"}})
	dir := t.TempDir()
	textFile := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(textFile, []byte("plain text"), 0o600))

	cases := []struct {
		path string
		want string
	}{
		{filepath.Join(dir, "missing.pdf"), "PDF file not found"},
		{textFile, "input is not a PDF document"},
		{dir, "input is not a PDF document"},
	}
	for _, tc := range cases {
		_, err := render.NewPoppler("", 0).PageCount(context.Background(), tc.path)
		require.Error(t, err, tc.path)
		assert.ErrorContains(t, handleConvertError(fmt.Errorf("open %s: %w", tc.path, err), zerolog.Nop()), tc.want, tc.path)
	}
}

func TestHandleConvertErrorDeadline(t *testing.T) {
	withConfig(t, &config.Config{})

	err := handleConvertError(fmt.Errorf("page 3: %w", context.DeadlineExceeded), zerolog.Nop())
	assert.ErrorContains(t, err, "timed out")

	err = handleConvertError(errors.New("boom"), zerolog.Nop())
	assert.ErrorContains(t, err, "conversion failed: boom")
}
