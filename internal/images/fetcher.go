package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrTooLarge is returned when a remote image exceeds the fetch limit.
	ErrTooLarge = errors.New("remote image too large")
	// ErrBlockedHost is returned for URLs that resolve to loopback, private,
	// link-local or otherwise internal addresses.
	ErrBlockedHost = errors.New("image host is not publicly routable")
)

// Fetcher downloads images that users submit by URL instead of by file
type Fetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
	// AllowPrivateHosts lifts the public-address restriction. Only tests and
	// local development should set it.
	AllowPrivateHosts bool
}

// NewFetcher creates a fetcher that retries transient failures. Addresses
// are checked when the connection is dialed, so redirects and DNS answers
// cannot reach internal hosts either.
func NewFetcher(maxBytes int64) *Fetcher {
	f := &Fetcher{MaxBytes: maxBytes}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   f.checkDial,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = slog.Default()
	retryClient.HTTPClient.Transport = &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if errors.Is(err, ErrBlockedHost) {
			return false, err
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	f.HTTPClient = retryClient.StandardClient()
	f.HTTPClient.Timeout = 30 * time.Second
	return f
}

func (f *Fetcher) checkDial(network, address string, _ syscall.RawConn) error {
	if f.AllowPrivateHosts {
		return nil
	}
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	if !PublicAddr(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, addrPort.Addr())
	}
	return nil
}

// PublicAddr reports whether addr is a globally routable unicast address.
func PublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast():
		return false
	}
	// carrier-grade NAT
	if addr.Is4() && netip.MustParsePrefix("100.64.0.0/10").Contains(addr) {
		return false
	}
	return true
}

// Image is a downloaded image held in memory
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (i *Image) Reader() io.Reader {
	return bytes.NewReader(i.Data)
}

func (i *Image) Size() int64 {
	return int64(len(i.Data))
}

// Fetch downloads rawURL. Only http and https URLs are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid image URL %q", rawURL)
	}
	// literal addresses fail here without a dial
	if ip, err := netip.ParseAddr(u.Hostname()); err == nil && !f.AllowPrivateHosts && !PublicAddr(ip) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, ip)
	}
	if strings.EqualFold(u.Hostname(), "localhost") && !f.AllowPrivateHosts {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	// Read one byte past the limit to detect oversized images
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, ErrTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	filename := path.Base(u.Path)
	if filename == "/" || filename == "." {
		filename = "image"
	}

	slog.Debug("Fetched remote image", "url", u.String(), "bytes", len(data), "content_type", contentType)
	return &Image{Data: data, ContentType: contentType, Filename: filename}, nil
}
