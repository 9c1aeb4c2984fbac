package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memoryOutput) Write(name, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = contents
}

func TestRecordTranscripts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"pageCount":1}`))
	}))
	t.Cleanup(srv.Close)

	out := &memoryOutput{files: map[string]string{}}
	client := resty.New().SetBaseURL(srv.URL).SetHeader("ovio-api-key", "secret")
	RecordTranscripts(client, out)

	_, err := client.R().SetQueryParam("page", "1").Get("/v3/openkvk")
	require.NoError(t, err)

	contents, ok := out.files["0001_get_v3_openkvk.txt"]
	require.True(t, ok, "files: %v", out.files)
	require.Contains(t, contents, "GET ")
	require.Contains(t, contents, `{"pageCount":1}`)
	require.Contains(t, contents, "<redacted>")
	require.False(t, strings.Contains(contents, "secret"))
}

func TestRecordTranscriptsNilOutput(t *testing.T) {
	// must not panic or register anything
	RecordTranscripts(resty.New(), nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	out.Write("0001_get_x.txt", "hello")
	contents, err := os.ReadFile(filepath.Join(dir, "0001_get_x.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}
