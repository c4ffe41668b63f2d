// Package refresh fetches replacement media urls from a video's update url.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"playlist-manager/internal/playlist"
)

// Descriptor describes how to talk to the external update service. It is
// loaded from configuration so credentials never live in code.
type Descriptor struct {
	Headers      map[string]string
	Cookie       string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

type Client struct {
	desc Descriptor
	http *http.Client
}

func NewClient(desc Descriptor) *Client {
	if desc.MaxBodyBytes <= 0 {
		desc.MaxBodyBytes = 64 << 10
	}
	return &Client{
		desc: desc,
		http: &http.Client{
			Timeout: desc.Timeout,
		},
	}
}

type updateResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// Fetch issues one GET to updateURL and returns the url it reports. Any
// response other than {"status":"true","url":"<non-empty>"} is an error
// wrapping playlist.ErrUpstream.
func (c *Client) Fetch(ctx context.Context, updateURL string) (string, error) {
	u, err := url.Parse(updateURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: unsupported update url %q", playlist.ErrUpstream, updateURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	for k, v := range c.desc.Headers {
		// The transport negotiates compression itself and only then decodes it.
		if strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		req.Header.Set(k, v)
	}
	if c.desc.Cookie != "" {
		req.Header.Set("Cookie", c.desc.Cookie)
	}
	if c.desc.UserAgent != "" {
		req.Header.Set("User-Agent", c.desc.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", playlist.ErrUpstream, resp.StatusCode)
	}

	var body updateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.desc.MaxBodyBytes)).Decode(&body); err != nil {
		return "", errors.Join(playlist.ErrUpstream, err)
	}
	if body.Status != "true" {
		return "", fmt.Errorf("%w: status flag %q", playlist.ErrUpstream, body.Status)
	}
	fresh := strings.TrimSpace(body.URL)
	if fresh == "" {
		return "", fmt.Errorf("%w: missing url", playlist.ErrUpstream)
	}
	return fresh, nil
}
