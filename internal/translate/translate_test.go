package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kvksnapshot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	mu      sync.Mutex
	queries []string
	pairs   []string
	answer  func(q string) (int, any)
}

func (f *fakeMemory) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.pairs = append(f.pairs, r.URL.Query().Get("langpair"))
		f.mu.Unlock()

		status, body := f.answer(q)
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func answer(text string, status any) map[string]any {
	return map[string]any{
		"responseData":   map[string]any{"translatedText": text},
		"responseStatus": status,
	}
}

func newTestClient(srv *httptest.Server, maxChars int, tel telemetry.API) *Client {
	return NewClient(ClientOptions{
		BaseUrl:  srv.URL,
		Source:   "nl",
		Target:   "en",
		MaxChars: maxChars,
		Timeout:  time.Second * 2,
	}, tel)
}

func TestTranslate(t *testing.T) {
	memory := &fakeMemory{answer: func(q string) (int, any) {
		return 200, answer("Development of software &amp; <b>web</b>design", 200)
	}}
	client := newTestClient(memory.serve(t), 0, telemetry.NewRecorder())

	result := client.Translate(context.Background(), "Ontwikkelen van software en webdesign")
	require.Equal(t, "Development of software & webdesign", result)
	require.Equal(t, []string{"nl|en"}, memory.pairs)
}

func TestTranslateTruncatesInput(t *testing.T) {
	memory := &fakeMemory{answer: func(q string) (int, any) {
		return 200, answer("translated", "200")
	}}
	client := newTestClient(memory.serve(t), 10, telemetry.NewRecorder())

	long := strings.Repeat("é", 25)
	require.Equal(t, "translated", client.Translate(context.Background(), long))
	require.Equal(t, []string{strings.Repeat("é", 10)}, memory.queries)
}

func TestTranslateFallsBack(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    any
		warning bool
	}{
		{name: "http failure", status: 500, body: map[string]any{}, warning: true},
		{name: "quota exceeded", status: 200, body: answer("MYMEMORY WARNING", 429), warning: true},
		{name: "empty answer", status: 200, body: answer("", 200)},
		{name: "no-op answer", status: 200, body: answer("Bakkerij", 200)},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			memory := &fakeMemory{answer: func(string) (int, any) {
				return test.status, test.body
			}}
			rec := telemetry.NewRecorder()
			client := newTestClient(memory.serve(t), 0, rec)

			require.Equal(t, "Bakkerij", client.Translate(context.Background(), "Bakkerij"))
			if test.warning {
				require.Len(t, rec.Reports("warning"), 1)
			} else {
				require.Empty(t, rec.Reports("warning"))
			}
		})
	}
}

func TestTranslateEmptySkipsLookup(t *testing.T) {
	memory := &fakeMemory{answer: func(string) (int, any) {
		return 200, answer("x", 200)
	}}
	client := newTestClient(memory.serve(t), 0, telemetry.NewRecorder())

	require.Equal(t, "  ", client.Translate(context.Background(), "  "))
	require.Empty(t, memory.queries)
}
