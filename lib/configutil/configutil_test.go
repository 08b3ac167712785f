package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Portal struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"portal"`
	Target int `json:"target"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		// comments are fine
		portal: { username: "advogado", password: "hunter2" },
		target: 500,
	}`), 0o644)
	require.NoError(t, err)

	config, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "advogado", config.Portal.Username)
	require.Equal(t, 500, config.Target)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(base, []byte(`{
		portal: { username: "advogado", password: "hunter2" },
		target: 500,
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		portal: { password: "s3cret" },
	}`), 0o644))

	config, err := ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, "advogado", config.Portal.Username)
	require.Equal(t, "s3cret", config.Portal.Password)
	require.Equal(t, 500, config.Target)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		target: 10,
	}`), 0o644))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 10, config.Target)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("deploy", "config.local.json5"), localPath(filepath.Join("deploy", "config.json5")))
	require.Equal(t, "config.local.json5", localPath("config.json5"))
}
