package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSilent(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		assert.False(t, Logger().Enabled(context.Background(), level), "level %v", level)
	}
}

func TestSetAndRestore(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { Set(orig) })

	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("theme loaded", "exports", 2)
	assert.Contains(t, buf.String(), "theme loaded")

	Set(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}
