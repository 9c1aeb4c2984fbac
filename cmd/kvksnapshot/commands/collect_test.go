package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"kvksnapshot/internal/components/chrono"
	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/internal/ledger"
	"kvksnapshot/internal/openkvk/openkvktest"

	"github.com/stretchr/testify/require"
)

var testNow = chrono.FixedTime{At: time.Date(2026, 10, 14, 9, 0, 0, 0, chrono.Amsterdam())}

type fakeGithub struct {
	mu      sync.Mutex
	paths   []string
	content map[string]string
	fail    bool
}

func (f *fakeGithub) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("content-type", "application/json")
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"down"}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		case http.MethodPut:
			var payload struct {
				Content string `json:"content"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			decoded, _ := base64.StdEncoding.DecodeString(payload.Content)
			f.paths = append(f.paths, r.URL.Path)
			f.content[r.URL.Path] = string(decoded)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"content": map[string]any{"download_url": "https://raw.example" + r.URL.Path},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, registry *openkvktest.Server) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ApiBase = registry.URL
	cfg.ApiKey = registry.ApiKey
	cfg.Cities = []string{"Utrecht"}
	cfg.PageSize = 10
	cfg.ItemDelay = ""
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.LedgerPath = filepath.Join(dir, "seen_kvk.txt")
	return cfg
}

func TestCollectWritesSnapshot(t *testing.T) {
	registry := openkvktest.NewServer(t)
	registry.SetPages("Utrecht", []openkvktest.Item{
		openkvktest.Company("1", "Een", "Utrecht"),
		openkvktest.Company("2", "Twee", "Utrecht"),
	})
	registry.SetProfile(openkvktest.SelfHref("1"), openkvktest.Item{"updated_at": "2026-10-10"})
	registry.SetProfile(openkvktest.SelfHref("2"), openkvktest.Item{"updated_at": "2024-01-01"})

	cfg := testConfig(t, registry)
	cfg.RecentDays = 7

	summary := bytes.NewBuffer(nil)
	out, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), summary)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.OutDir, "kvk_snapshot_20261014.csv"), out.snapshot)
	require.Equal(t, filepath.Join(cfg.OutDir, "kvk_snapshot_20261014_recent.csv"), out.recent)
	require.Contains(t, summary.String(), "Utrecht")

	snapshot, err := os.ReadFile(out.snapshot)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(snapshot)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "1,Een,Utrecht,"))
	require.True(t, strings.HasSuffix(lines[1], ",2026-10-10,2026-10-14"))

	recent, err := os.ReadFile(out.recent)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(recent)), "\n"), 2)

	seen, err := ledger.Load(cfg.LedgerPath)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, seen.Sorted())

	// a second run on the same data emits nothing new
	out, err = collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.NoError(t, err)
	require.Empty(t, out.result.Records)
}

func TestCollectPublishes(t *testing.T) {
	registry := openkvktest.NewServer(t)
	registry.SetPages("Utrecht", []openkvktest.Item{openkvktest.Company("1", "Een", "Utrecht")})

	github := &fakeGithub{content: map[string]string{}}
	srv := github.serve(t)

	cfg := testConfig(t, registry)
	cfg.Publish = PublishConfig{Enabled: true, ApiBase: srv.URL, Owner: "kvk", Repo: "snapshots", Dir: "data"}

	out, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"/repos/kvk/snapshots/contents/data/kvk_snapshot_20261014.csv"}, github.paths)
	require.Equal(t, "https://raw.example/repos/kvk/snapshots/contents/data/kvk_snapshot_20261014.csv", out.publishUrl)

	local, err := os.ReadFile(out.snapshot)
	require.NoError(t, err)
	require.Equal(t, string(local), github.content[github.paths[0]])
}

func TestCollectPublishFailureIsNotFatal(t *testing.T) {
	registry := openkvktest.NewServer(t)
	registry.SetPages("Utrecht", []openkvktest.Item{openkvktest.Company("1", "Een", "Utrecht")})

	github := &fakeGithub{content: map[string]string{}, fail: true}
	srv := github.serve(t)

	cfg := testConfig(t, registry)
	cfg.Publish = PublishConfig{Enabled: true, ApiBase: srv.URL, Owner: "kvk", Repo: "snapshots"}

	tel := telemetry.NewRecorder()
	out, err := collect(context.Background(), cfg, testNow, tel, bytes.NewBuffer(nil))
	require.NoError(t, err)
	require.Empty(t, out.publishUrl)
	require.NotEmpty(t, tel.Broken("publish"))

	_, err = os.Stat(out.snapshot)
	require.NoError(t, err)
}

func TestCollectRejectsInvalidConfig(t *testing.T) {
	registry := openkvktest.NewServer(t)
	cfg := testConfig(t, registry)
	cfg.PageSize = 0

	_, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.Error(t, err)
	require.Empty(t, registry.Searches())
}

func TestShowLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_kvk.txt")
	require.NoError(t, ledger.Persist(path, ledger.NewSet("2", "1")))

	buff := bytes.NewBuffer(nil)
	require.NoError(t, showLedger(buff, path, true))
	out := buff.String()
	require.Contains(t, out, "2")
	require.True(t, strings.HasSuffix(out, "1\n2\n"))
}

func TestCollectDumpsTranscripts(t *testing.T) {
	registry := openkvktest.NewServer(t)
	registry.SetPages("Utrecht", []openkvktest.Item{openkvktest.Company("1", "Een", "Utrecht")})

	cfg := testConfig(t, registry)
	cfg.DumpHttp = filepath.Join(t.TempDir(), "http")

	_, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.DumpHttp)
	require.NoError(t, err)
	// one search page plus one profile lookup
	require.Len(t, entries, 2)
	require.Equal(t, "0001_get_v3_openkvk.txt", entries[0].Name())
}

func TestCollectFailedExportKeepsLedger(t *testing.T) {
	registry := openkvktest.NewServer(t)
	registry.SetPages("Utrecht", []openkvktest.Item{openkvktest.Company("1", "Een", "Utrecht")})

	cfg := testConfig(t, registry)
	// a regular file where the output directory should be
	blocked := filepath.Join(t.TempDir(), "not-a-dir")
	writeFile(t, blocked, "")
	cfg.OutDir = blocked

	_, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.ErrorContains(t, err, "export")

	seen, err := ledger.Load(cfg.LedgerPath)
	require.NoError(t, err)
	require.Zero(t, seen.Len())

	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	out, err := collect(context.Background(), cfg, testNow, telemetry.NewRecorder(), bytes.NewBuffer(nil))
	require.NoError(t, err)
	require.Len(t, out.result.Records, 1)
	require.Equal(t, "1", out.result.Records[0].RegistryNumber)
}
