package openkvk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// profileEndpoint resolves a self link against the base url. Absolute links
// are only followed to the base host since every request carries the api key.
func (c *Client) profileEndpoint(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("openkvk: parse profile link %q: %w", href, err)
	}
	if u.IsAbs() || u.Host != "" {
		if !strings.EqualFold(u.Host, c.base.Host) {
			return "", fmt.Errorf("openkvk: profile link %q points outside %s", href, c.base.Host)
		}
		return u.RequestURI(), nil
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return href, nil
}

// FetchProfile fetches the profile a listing's self link points to, `href`
// may be relative to the base url (ex. /v3/openkvk/hoofdvestiging-58488340-downsized)
// or absolute on the same host.
func (c *Client) FetchProfile(ctx context.Context, href string) (Profile, error) {
	endpoint, err := c.profileEndpoint(href)
	if err != nil {
		return Profile{}, err
	}

	if c.profileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.profileTimeout)
		defer cancel()
	}

	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return Profile{}, err
	}
	var profile Profile
	err = json.Unmarshal(body, &profile)
	if err != nil {
		return Profile{}, fmt.Errorf("openkvk: decode profile %s: %w", href, err)
	}
	return profile, nil
}

// Profile enriches a listing with its profile, ok is false when the listing
// has no self link (no request is made) or when the fetch failed.
func (c *Client) Profile(ctx context.Context, listing Listing) (profile Profile, ok bool) {
	href := listing.SelfHref()
	if href == "" {
		return Profile{}, false
	}

	profile, err := c.FetchProfile(ctx, href)
	if err != nil {
		c.tel.ReportWarning(report_client_profile, err, string(listing.RegistryNumber))
		return Profile{}, false
	}
	return profile, true
}
