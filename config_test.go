package triviareview

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadConfigMissingGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), DefaultConfigFile), nil)
	require.NoError(t, err)
	assert.Equal(t, "Code 3", cfg.Label(3))
	assert.Empty(t, cfg.LastFile())
	assert.Equal(t, DefaultAutosaveInterval, cfg.AutosaveInterval())
}

func TestLoadConfigCorruptIsLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"code_labels": {`), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	cfg, err := LoadConfig(path, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "Code 0", cfg.Label(0))
	assert.Equal(t, 1, logs.Len())
}

func TestConfigSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	cfg := NewConfig(path, nil)
	require.NoError(t, cfg.SetLabel(1, "  Keep  "))
	require.NoError(t, cfg.SetLabel(2, "Rewrite"))
	cfg.SetLastFile("/data/questions.json")
	cfg.SetOutputFolder("/data/out")
	require.NoError(t, cfg.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code_labels":{"1":"Keep","2":"Rewrite"},"last_file":"/data/questions.json","output_folder":"/data/out"}`, string(raw))

	loaded, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Keep", loaded.Label(1))
	assert.Equal(t, map[int]string{1: "Keep", 2: "Rewrite"}, loaded.Labels())
	assert.Equal(t, "/data/out", loaded.OutputFolder())

	require.NoError(t, loaded.SetLabel(1, ""))
	assert.Equal(t, "Code 1", loaded.Label(1))

	var inputErr *InputError
	assert.ErrorAs(t, loaded.SetLabel(10, "x"), &inputErr)
}

func TestConfigAutosaveSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"autosave_seconds": 5}`), 0o644))
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.AutosaveInterval())
}

func TestReloadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	cfg := NewConfig(path, nil)
	cfg.SetLastFile("mine.json")
	require.NoError(t, cfg.Save())

	changed, err := cfg.ReloadLabels()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte(`{"code_labels":{"4":"Other window"},"last_file":"theirs.json"}`), 0o644))
	changed, err = cfg.ReloadLabels()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Other window", cfg.Label(4))
	assert.Equal(t, "mine.json", cfg.LastFile())
}

func TestConfigWatcherReloadsLabels(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	cfg := NewConfig(path, nil)
	require.NoError(t, cfg.Save())

	var calls atomic.Int32
	w, err := NewConfigWatcher(cfg, nil, func() { calls.Add(1) })
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))

	other := NewConfig(path, nil)
	require.NoError(t, other.SetLabel(7, "From elsewhere"))
	require.NoError(t, other.Save())

	require.Eventually(t, func() bool { return cfg.Label(7) == "From elsewhere" }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	w.Stop()
}
