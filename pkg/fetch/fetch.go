// Package fetch retrieves remote profile content. Fetch failures never
// carry partial data: callers keep their existing content and surface the
// error.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent identifies the client to subscription servers. Some
// providers vary their payload by agent, so it is overridable.
const DefaultUserAgent = "enhance/1.0"

const defaultMaxSize = 8 << 20

// Error reports a failed fetch for one URL.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch: %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch: %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SubscriptionInfo is the provider-reported quota from the
// subscription-userinfo header, in bytes and unix seconds.
type SubscriptionInfo struct {
	Upload   int64
	Download int64
	Total    int64
	Expire   int64
}

// Result carries fetched content plus the hints providers attach through
// response headers.
type Result struct {
	Data            []byte
	Filename        string
	IntervalMinutes int
	Subscription    *SubscriptionInfo
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) {
		if agent != "" {
			f.userAgent = agent
		}
	}
}

// WithProxyURL routes fetches through a proxy, typically the running
// engine's own mixed port.
func WithProxyURL(proxy string) Option {
	return func(f *Fetcher) {
		parsed, err := url.Parse(proxy)
		if err != nil || proxy == "" {
			return
		}
		f.client = &http.Client{
			Timeout:   f.client.Timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
		}
	}
}

// WithMaxSize caps the accepted response size in bytes.
func WithMaxSize(limit int64) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxSize = limit
		}
	}
}

// WithHeaders sends extra headers with every download, e.g. provider
// authentication.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		if len(headers) == 0 {
			return
		}
		if f.headers == nil {
			f.headers = make(map[string]string, len(headers))
		}
		for key, value := range headers {
			f.headers[key] = value
		}
	}
}

// Fetcher downloads profile content over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxSize   int64
	headers   map[string]string
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	fetcher := &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
		maxSize:   defaultMaxSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}
	return fetcher
}

// Fetch downloads the document at rawURL and returns its bytes together
// with any header hints. An empty body is an error so a broken provider
// can never blank out a working profile.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, defaultMaxSize))
		return Result{}, &Error{URL: rawURL, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return Result{}, &Error{URL: rawURL, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Result{}, &Error{URL: rawURL, Err: errors.New("empty response body")}
	}

	result := Result{
		Data:            data,
		Filename:        filenameHint(resp.Header.Get("Content-Disposition")),
		IntervalMinutes: intervalHint(resp.Header.Get("Profile-Update-Interval")),
		Subscription:    parseSubscriptionInfo(resp.Header.Get("Subscription-Userinfo")),
	}
	return result, nil
}

// filenameHint extracts the filename parameter from a Content-Disposition
// header.
func filenameHint(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// intervalHint converts the provider's update interval, given in hours,
// into minutes.
func intervalHint(raw string) int {
	hours, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || hours <= 0 {
		return 0
	}
	return hours * 60
}

// parseSubscriptionInfo decodes the "upload=..; download=..; total=..;
// expire=.." header format.
func parseSubscriptionInfo(raw string) *SubscriptionInfo {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	info := &SubscriptionInfo{}
	found := false
	for _, field := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "upload":
			info.Upload = parsed
			found = true
		case "download":
			info.Download = parsed
			found = true
		case "total":
			info.Total = parsed
			found = true
		case "expire":
			info.Expire = parsed
			found = true
		}
	}
	if !found {
		return nil
	}
	return info
}
