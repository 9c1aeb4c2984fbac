// Package publish uploads snapshot files to a GitHub repository through the
// contents API, overwriting the file when it already exists.
package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"kvksnapshot/internal/components/assert"
	"kvksnapshot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	report_client_publish = "client.publish"
)

const DefaultApiBase = "https://api.github.com"

// StatusError is returned when GitHub answers with an unexpected status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("publish: %s returned %d: %s", e.Op, e.Status, e.Body)
}

type ClientOptions struct {
	// defaults to DefaultApiBase
	ApiBase string
	Token   string
	Owner   string
	Repo    string
	// empty uses the repository default branch
	Branch string
}

type Client struct {
	http   *resty.Client
	owner  string
	repo   string
	branch string
	tel    telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Owner)
	assert.NotEmptyStr(opts.Repo)

	tel = telemetry.NewScopedAPI("publish", tel)

	if opts.ApiBase == "" {
		opts.ApiBase = DefaultApiBase
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(opts.ApiBase, "/"))
	httpClient.SetHeader("accept", "application/vnd.github+json")
	httpClient.SetHeader("x-github-api-version", "2022-11-28")
	if opts.Token != "" {
		httpClient.SetAuthToken(opts.Token)
	}
	telemetry.InstrumentResty(httpClient, "kvksnapshot.publish", tel)

	return &Client{
		http:   httpClient,
		owner:  opts.Owner,
		repo:   opts.Repo,
		branch: opts.Branch,
		tel:    tel,
	}
}

func (c *Client) contentsPath(remotePath string) string {
	segments := strings.Split(strings.Trim(remotePath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(
		"/repos/%s/%s/contents/%s",
		url.PathEscape(c.owner),
		url.PathEscape(c.repo),
		strings.Join(segments, "/"),
	)
}

type contentResponse struct {
	Sha string `json:"sha"`
}

// CurrentSha returns the blob sha of remotePath, empty when the file does not exist.
func (c *Client) CurrentSha(ctx context.Context, remotePath string) (string, error) {
	req := c.http.R().SetContext(ctx)
	if c.branch != "" {
		req.SetQueryParam("ref", c.branch)
	}

	var body contentResponse
	res, err := req.SetResult(&body).Get(c.contentsPath(remotePath))
	if err != nil {
		return "", fmt.Errorf("publish: get %s: %w", remotePath, err)
	}
	switch res.StatusCode() {
	case 200:
		return body.Sha, nil
	case 404:
		return "", nil
	default:
		return "", &StatusError{Op: "get " + remotePath, Status: res.StatusCode(), Body: res.String()}
	}
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	Sha     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		DownloadUrl string `json:"download_url"`
		HtmlUrl     string `json:"html_url"`
	} `json:"content"`
}

// Upload writes contents to remotePath, `sha` must be the current blob sha
// when the file exists and empty otherwise. It returns the download url.
func (c *Client) Upload(ctx context.Context, remotePath string, contents []byte, message, sha string) (string, error) {
	payload := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(contents),
		Branch:  c.branch,
		Sha:     sha,
	}

	var body putResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&body).
		Put(c.contentsPath(remotePath))
	if err != nil {
		return "", fmt.Errorf("publish: put %s: %w", remotePath, err)
	}
	if res.StatusCode() != 200 && res.StatusCode() != 201 {
		return "", &StatusError{Op: "put " + remotePath, Status: res.StatusCode(), Body: res.String()}
	}
	if body.Content.DownloadUrl != "" {
		return body.Content.DownloadUrl, nil
	}
	return body.Content.HtmlUrl, nil
}

// Publish creates or overwrites remotePath with contents.
func (c *Client) Publish(ctx context.Context, remotePath string, contents []byte, message string) (string, error) {
	sha, err := c.CurrentSha(ctx, remotePath)
	if err != nil {
		return "", err
	}
	c.tel.ReportDebug("publish", remotePath, sha != "")
	return c.Upload(ctx, remotePath, contents, message, sha)
}

// TryPublish is Publish that reports failures instead of returning them,
// ok is false when nothing was published.
func (c *Client) TryPublish(ctx context.Context, remotePath string, contents []byte, message string) (downloadUrl string, ok bool) {
	downloadUrl, err := c.Publish(ctx, remotePath, contents, message)
	if err != nil {
		c.tel.ReportBroken(report_client_publish, err, remotePath)
		return "", false
	}
	return downloadUrl, true
}

// RemotePath joins the configured directory and the file name.
func RemotePath(dir, name string) string {
	return strings.TrimPrefix(path.Join(dir, name), "/")
}
