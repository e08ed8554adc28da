package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpointer/config"
	"gridpointer/display"
	"gridpointer/grid"
	"gridpointer/input"
	"gridpointer/sink"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommands_PathInitShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gp", "config.toml")
	t.Cleanup(func() { global.ConfigPath = "" })

	out, err := execute(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	_, err = execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	require.Error(t, err)
	_, err = execute(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 20, cfg.Grid.Cols)
	assert.Equal(t, 12, cfg.Grid.Rows)
	assert.Equal(t, 5, cfg.Movement.DashCells)
	assert.Equal(t, 150, cfg.Movement.TweenMS)
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := execute(t, "version", "-s")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestDevicePaths_Precedence(t *testing.T) {
	assert.Equal(t, []string{"/dev/a"}, devicePaths([]string{"/dev/a"}, []string{"/dev/b"}))
	assert.Equal(t, []string{"/dev/b"}, devicePaths(nil, []string{"/dev/b"}))
}

func TestScenarios_Valid(t *testing.T) {
	for _, name := range scenarioNames() {
		t.Run(name, func(t *testing.T) {
			s := scenarios[name]
			cfg := s.config()
			require.NoError(t, cfg.Validate())
			assert.NotEmpty(t, s.Steps)
		})
	}
	assert.Equal(t, grid.Cell{Col: 0, Row: 0}, scenarios["grid"].config().StartCell())
	assert.Equal(t, grid.Cell{Col: 10, Row: 6}, scenarios["dash"].config().StartCell())
}

func TestEngine_KeyboardToRecorder(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.Cols, cfg.Grid.Rows = 10, 6
	cfg.Movement.TweenMS = 20
	cfg.Display.Width, cfg.Display.Height = 1000, 600

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e, err := newEngine(ctx, cfg, "")
	require.NoError(t, err)

	rec := sink.NewRecorder()
	keys := input.NewVirtualDevice("test", 16)
	monitor := display.Resolution{Size: cfg.FallbackSize(), Source: "config"}
	e.attach(rec, "test", []input.Device{keys}, monitor, "")

	done := make(chan error, 1)
	go func() { done <- e.run(ctx) }()

	keys.Tap(input.KeyRight)
	require.Eventually(t, func() bool {
		return e.daemon.Status().Position == grid.Cell{Col: 6, Row: 3} && !e.daemon.Status().Tweening
	}, 2*time.Second, 5*time.Millisecond)

	keys.Tap(input.KeySpace)
	require.Eventually(t, func() bool { return len(rec.Clicks()) == 1 }, 2*time.Second, 5*time.Millisecond)

	keys.Tap(input.KeyEsc)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("engine did not stop on quit")
	}

	assert.True(t, rec.Closed())
	assert.InDelta(t, 100.0, rec.Total().X, 1e-6)
	assert.InDelta(t, 0.0, rec.Total().Y, 1e-6)
	assert.Equal(t, []input.Button{input.ButtonLeft}, rec.Clicks())
}
