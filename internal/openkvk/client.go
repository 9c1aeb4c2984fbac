// Package openkvk is a client for the overheid.io openkvk v3 API, the public
// mirror of the Dutch chamber of commerce (KvK) business register.
package openkvk

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kvksnapshot/internal/components/assert"
	"kvksnapshot/internal/components/telemetry"
	"kvksnapshot/lib/restyutil"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_walk    = "client.walk"
	report_client_profile = "client.profile"
)

const (
	DefaultBaseUrl = "https://api.overheid.io"
	searchPath     = "/v3/openkvk"
	apiKeyHeader   = "ovio-api-key"
)

// listingFields are the extra fields requested on search pages so that
// most records can be built without the profile.
var listingFields = []string{
	"bezoeklocatie.straat",
	"bezoeklocatie.huisnummer",
	"bezoeklocatie.postcode",
	"sbi",
	"website",
}

// StatusError is returned when the API answers with anything but 200.
type StatusError struct {
	Url    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("openkvk: %s returned %d: %s", e.Url, e.Status, body)
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	ApiKey  string
	// bounds each profile request, 0 means no timeout
	ProfileTimeout time.Duration
	// receives a transcript of every exchange when set
	Transcripts restyutil.Output
}

type Client struct {
	http           *resty.Client
	base           *url.URL
	profileTimeout time.Duration
	tel            telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("openkvk", tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	baseUrl = strings.TrimRight(baseUrl, "/")
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("openkvk: parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.SetHeader("accept", "application/json")
	httpClient.SetHeader("user-agent", "kvksnapshot/1.0")
	if opts.ApiKey != "" {
		httpClient.SetHeader(apiKeyHeader, opts.ApiKey)
	}
	telemetry.InstrumentResty(httpClient, "kvksnapshot.openkvk", tel)
	restyutil.RecordTranscripts(httpClient, opts.Transcripts)

	return &Client{
		http:           httpClient,
		base:           base,
		profileTimeout: opts.ProfileTimeout,
		tel:            tel,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	res, err := req.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("openkvk: fetch %s: %w", endpoint, err)
	}
	if res.StatusCode() != 200 {
		return nil, &StatusError{
			Url:    endpoint,
			Status: res.StatusCode(),
			Body:   res.String(),
		}
	}
	return res.Body(), nil
}
