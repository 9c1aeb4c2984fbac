package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"kvksnapshot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeGithub struct {
	mu       sync.Mutex
	files    map[string]string
	puts     []map[string]any
	gets     []string
	auth     []string
	failPuts bool
}

func (f *fakeGithub) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("authorization"))
		w.Header().Set("content-type", "application/json")

		switch r.Method {
		case http.MethodGet:
			f.gets = append(f.gets, r.URL.Path+"?"+r.URL.RawQuery)
			sha, ok := f.files[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]any{"message": "Not Found"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"sha": sha})
		case http.MethodPut:
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			f.puts = append(f.puts, payload)
			if f.failPuts {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]any{"message": "sha mismatch"})
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"content": map[string]any{
					"download_url": "https://raw.example" + r.URL.Path,
				},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, tel telemetry.API) *Client {
	return NewClient(ClientOptions{
		ApiBase: srv.URL,
		Token:   "token",
		Owner:   "acme",
		Repo:    "snapshots",
		Branch:  "main",
	}, tel)
}

const remote = "data/kvk_snapshot_20261014.csv"
const remoteApiPath = "/repos/acme/snapshots/contents/data/kvk_snapshot_20261014.csv"

func TestPublishOverwritesExisting(t *testing.T) {
	gh := &fakeGithub{files: map[string]string{remoteApiPath: "abc123"}}
	client := newTestClient(gh.serve(t), telemetry.NewRecorder())

	link, err := client.Publish(context.Background(), remote, []byte("a,b\n"), "snapshot 2026-10-14")
	require.NoError(t, err)
	require.Equal(t, "https://raw.example"+remoteApiPath, link)

	require.Equal(t, []string{remoteApiPath + "?ref=main"}, gh.gets)
	require.Len(t, gh.puts, 1)
	payload := gh.puts[0]
	require.Equal(t, "abc123", payload["sha"])
	require.Equal(t, "main", payload["branch"])
	require.Equal(t, "snapshot 2026-10-14", payload["message"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("a,b\n")), payload["content"])
	require.Equal(t, []string{"Bearer token", "Bearer token"}, gh.auth)
}

func TestPublishNewFileOmitsSha(t *testing.T) {
	gh := &fakeGithub{files: map[string]string{}}
	client := newTestClient(gh.serve(t), telemetry.NewRecorder())

	_, err := client.Publish(context.Background(), remote, []byte("x"), "snapshot")
	require.NoError(t, err)
	require.Len(t, gh.puts, 1)
	_, hasSha := gh.puts[0]["sha"]
	require.False(t, hasSha)
}

func TestTryPublishFailureIsReported(t *testing.T) {
	gh := &fakeGithub{files: map[string]string{}, failPuts: true}
	rec := telemetry.NewRecorder()
	client := newTestClient(gh.serve(t), rec)

	_, err := client.Publish(context.Background(), remote, []byte("x"), "snapshot")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusConflict, statusErr.Status)

	link, ok := client.TryPublish(context.Background(), remote, []byte("x"), "snapshot")
	require.False(t, ok)
	require.Empty(t, link)
	require.Len(t, rec.Broken(report_client_publish), 1)
}

func TestRemotePath(t *testing.T) {
	require.Equal(t, "kvk_snapshot_20261014.csv", RemotePath("", "kvk_snapshot_20261014.csv"))
	require.Equal(t, "data/x.csv", RemotePath("/data/", "x.csv"))
}
