package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Cities   []string `json:"cities"`
	PageSize int      `json:"page_size"`
	Ledger   string   `json:"ledger_path"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	writeFile(t, name, `{
		// comments are allowed
		cities: ["Amsterdam", "Utrecht"],
		page_size: 100,
		ledger_path: "seen.txt",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ page_size: 5 }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, []string{"Amsterdam", "Utrecht"}, cfg.Cities)
	require.Equal(t, 5, cfg.PageSize)
	require.Equal(t, "seen.txt", cfg.Ledger)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigOr(t *testing.T) {
	defaults := testConfig{PageSize: 100, Ledger: "seen_kvk.txt"}

	cfg, err := ReadConfigOr(filepath.Join(t.TempDir(), "config.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, name, `{ cities: ["Almere"] }`)

	cfg, err = ReadConfigOr(name, defaults)
	require.NoError(t, err)
	require.Equal(t, []string{"Almere"}, cfg.Cities)
	require.Equal(t, 100, cfg.PageSize)
	require.Equal(t, "seen_kvk.txt", cfg.Ledger)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("conf", "config.local.json5"), LocalPath(filepath.Join("conf", "config.json5")))
	require.Equal(t, "telemetry.local.json5", LocalPath("telemetry.json5"))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "KVKSNAPSHOT_TEST_KEY=from-file\n")

	t.Setenv("KVKSNAPSHOT_TEST_KEY", "")
	os.Unsetenv("KVKSNAPSHOT_TEST_KEY")

	err := LoadDotenv(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	require.Equal(t, "from-file", os.Getenv("KVKSNAPSHOT_TEST_KEY"))
}
