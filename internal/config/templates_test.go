package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_DecodesToDefaults(t *testing.T) {
	t.Parallel()
	out, err := RenderTemplate(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, out, 0o644))

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded())

	rc, err := Resolve(NewDefaults(), cfg, &md, noEnv, nil)
	require.NoError(t, err)
	assert.Equal(t, NewDefaults(), rc.Config)
	assert.Equal(t, SourceFile, rc.Sources["engine.step_timeout"])
	assert.False(t, Validate(cfg, &md).HasErrors())
}

func TestRenderTemplate_UsesConfigValues(t *testing.T) {
	t.Parallel()
	cfg := NewDefaults()
	cfg.Engine.StepTimeout = Dur(90 * time.Second)
	cfg.Server.Addr = ":7000"

	out, err := RenderTemplate(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `step_timeout = "1m30s"`)
	assert.Contains(t, string(out), `addr = ":7000"`)
}

func TestWriteTemplate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := WriteTemplate(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), path)
	assert.FileExists(t, path)
}

func TestWriteTemplate_ExistingFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))

	_, err := WriteTemplate(dir, false)
	assert.ErrorIs(t, err, ErrConfigExists)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))

	_, err = WriteTemplate(dir, true)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[engine]")
}

func TestWriteTemplate_CreatesDir(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "conf")
	_, err := WriteTemplate(dir, false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ConfigFileName))
}
