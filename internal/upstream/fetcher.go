package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPFetcher 下载回复音频。相对地址按 AudioBaseURL 解析
type HTTPFetcher struct {
	base     *url.URL
	client   *http.Client
	maxBytes int64
}

func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: opts.FetchTimeout},
		maxBytes: opts.MaxAudioBytes,
	}
	if opts.AudioBaseURL != "" {
		base, err := url.Parse(opts.AudioBaseURL)
		if err != nil {
			return nil, fmt.Errorf("upstream: parse audio base url: %w", err)
		}
		f.base = base
	}
	if f.client.Timeout <= 0 {
		f.client.Timeout = 15 * time.Second
	}
	return f, nil
}

// Resolve 把音频地址解析为绝对 URL
func (f *HTTPFetcher) Resolve(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("upstream: parse audio url %q: %w", locator, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if f.base == nil {
		return "", fmt.Errorf("upstream: relative audio url %q without audio_base_url", locator)
	}
	return f.base.ResolveReference(u).String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	target, err := f.Resolve(locator)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream: fetch %s: status %s", target, resp.Status)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read %s: %w", target, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("upstream: %s exceeds %d bytes", target, f.maxBytes)
	}
	return data, nil
}
