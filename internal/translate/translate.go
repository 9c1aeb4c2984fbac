// Package translate translates short free text through a MyMemory style
// lookup API (GET /get?q=...&langpair=nl|en).
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kvksnapshot/internal/components/assert"
	"kvksnapshot/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	report_client_translate = "client.translate"
)

const (
	DefaultBaseUrl  = "https://api.mymemory.translated.net"
	DefaultMaxChars = 500
	DefaultTimeout  = time.Second * 5
)

var ErrNoTranslation = errors.New("translate: no translation")

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	Source  string
	Target  string
	// input is cut to this many characters, defaults to DefaultMaxChars
	MaxChars int
	// defaults to DefaultTimeout
	Timeout time.Duration
}

type Client struct {
	http     *resty.Client
	langpair string
	maxChars int
	tel      telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Source)
	assert.NotEmptyStr(opts.Target)

	tel = telemetry.NewScopedAPI("translate", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(opts.BaseUrl, "/"))
	httpClient.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(httpClient, "kvksnapshot.translate", tel)

	return &Client{
		http:     httpClient,
		langpair: fmt.Sprintf("%s|%s", opts.Source, opts.Target),
		maxChars: opts.MaxChars,
		tel:      tel,
	}
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// flatten strips markup and entities some translation memories return.
func flatten(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(doc.Text())
}

type lookupResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus json.RawMessage `json:"responseStatus"`
}

func (r lookupResponse) status() string {
	return strings.Trim(strings.TrimSpace(string(r.ResponseStatus)), `"`)
}

// Lookup translates text, it fails with ErrNoTranslation when the service
// answered but had nothing to offer.
func (c *Client) Lookup(ctx context.Context, text string) (string, error) {
	query := truncate(text, c.maxChars)

	var body lookupResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("langpair", c.langpair).
		SetResult(&body).
		Get("/get")
	if err != nil {
		return "", fmt.Errorf("translate: fetch: %w", err)
	}
	if res.StatusCode() != 200 {
		return "", fmt.Errorf("translate: status %d: %s", res.StatusCode(), res.String())
	}
	if status := body.status(); status != "" && status != "200" {
		return "", fmt.Errorf("translate: response status %s", status)
	}

	translated := flatten(body.ResponseData.TranslatedText)
	if translated == "" || strings.EqualFold(translated, strings.TrimSpace(query)) {
		return "", ErrNoTranslation
	}
	return translated, nil
}

// Translate returns the translation of text, or text itself on any failure.
func (c *Client) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	translated, err := c.Lookup(ctx, text)
	if errors.Is(err, ErrNoTranslation) {
		return text
	}
	if err != nil {
		c.tel.ReportWarning(report_client_translate, err)
		return text
	}
	return translated
}
