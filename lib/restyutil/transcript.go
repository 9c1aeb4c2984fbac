// Package restyutil writes request/response transcripts of resty clients to
// disk, for inspecting what an upstream API actually returned.
package restyutil

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// headers whose values never end up in a transcript
var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Ovio-Api-Key":  true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Output interface {
	Write(name string, contents string)
}

// FilesystemOutput writes every transcript to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates `dir` if needed, existing transcripts are kept.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("restyutil: %w", err)
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(name string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write transcript", "name", name, "err", err)
	}
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			if redactedHeaders[http.CanonicalHeaderKey(k)] {
				v = "<redacted>"
			}
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// 1: request method
// 2: request url
// 3: request headers
// 4: response status
// 5: response headers
// 6: response body
const transcriptTemplate = `---- REQUEST ----

%s %s

%s

---- RESPONSE ----

%d

%s

%s
`

func formatTranscript(res *resty.Response) string {
	var requestHeaders http.Header
	if res.Request.RawRequest != nil {
		requestHeaders = res.Request.RawRequest.Header
	}
	return fmt.Sprintf(
		transcriptTemplate,
		res.Request.Method, res.Request.URL,
		formatHeaders(requestHeaders),
		res.StatusCode(),
		formatHeaders(res.Header()),
		res.String(),
	)
}

// transcriptName is "<seq>_<method>_<path>.txt" with the path flattened.
func transcriptName(seq uint64, res *resty.Response) string {
	path := res.Request.URL
	if res.Request.RawRequest != nil {
		path = res.Request.RawRequest.URL.Path
	}
	path = strings.Trim(unsafeChars.ReplaceAllString(path, "_"), "_")
	if len(path) > 80 {
		path = path[:80]
	}
	return fmt.Sprintf("%04d_%s_%s.txt", seq, strings.ToLower(res.Request.Method), path)
}

// RecordTranscripts writes a transcript of every completed exchange of
// client to output, a nil output leaves the client untouched.
func RecordTranscripts(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		seq := atomic.AddUint64(&counter, 1)
		output.Write(transcriptName(seq, res), formatTranscript(res))
		return nil
	})
}
