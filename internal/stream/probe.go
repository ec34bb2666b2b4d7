package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// Probe strategies selectable from configuration.
const (
	ProbeKindHTTP     = "http"
	ProbeKindPlaylist = "playlist"
)

// ProbeUserAgent identifies probe requests so they are not counted as views.
const ProbeUserAgent = "camera-relay-probe/1"

// maxPlaylistBytes caps how much of a manifest a probe reads.
const maxPlaylistBytes = 1 << 20

// Probe checks whether a relay address currently serves content. A nil
// error means healthy. Implementations must honor ctx cancellation.
type Probe interface {
	Check(ctx context.Context, uri string) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, uri string) error

// Check calls f(ctx, uri).
func (f ProbeFunc) Check(ctx context.Context, uri string) error {
	return f(ctx, uri)
}

// HTTPProbe treats any 2xx answer to a GET as healthy.
type HTTPProbe struct {
	Client *http.Client
}

// Check implements Probe.
func (p HTTPProbe) Check(ctx context.Context, uri string) error {
	resp, err := get(ctx, p.Client, uri)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPlaylistBytes))
	return nil
}

// PlaylistProbe fetches the relay manifest and requires it to parse as HLS
// with at least one segment or variant. An empty manifest is unhealthy.
type PlaylistProbe struct {
	Client *http.Client
}

// Check implements Probe.
func (p PlaylistProbe) Check(ctx context.Context, uri string) error {
	resp, err := get(ctx, p.Client, uri)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return classifyProbeError(err)
	}

	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return fmt.Errorf("%w: invalid playlist: %v", ErrProbeUnreachable, err)
	}

	switch pl := pl.(type) {
	case *playlist.Media:
		if len(pl.Segments) == 0 {
			return fmt.Errorf("%w: playlist has no segments", ErrProbeUnreachable)
		}
	case *playlist.Multivariant:
		if len(pl.Variants) == 0 {
			return fmt.Errorf("%w: playlist has no variants", ErrProbeUnreachable)
		}
	}
	return nil
}

// NewProbe returns the probe for kind, "http" when kind is empty.
func NewProbe(kind string, client *http.Client) (Probe, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ProbeKindHTTP:
		return HTTPProbe{Client: client}, nil
	case ProbeKindPlaylist:
		return PlaylistProbe{Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown probe kind %q", kind)
	}
}

// get issues the request and returns the response only for 2xx answers.
func get(ctx context.Context, client *http.Client, uri string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeUnreachable, err)
	}
	req.Header.Set("User-Agent", ProbeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyProbeError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrProbeUnreachable, resp.StatusCode)
	}
	return resp, nil
}

// classifyProbeError maps transport errors onto ErrProbeTimeout or
// ErrProbeUnreachable, keeping the cause in the message.
func classifyProbeError(err error) error {
	if errors.Is(err, ErrProbeTimeout) || errors.Is(err, ErrProbeUnreachable) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProbeUnreachable, err)
}
