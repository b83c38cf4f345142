// Package upstream resolves a configured stream into an effective URL and
// upstream kind. Declared kinds are trusted; "auto" streams are probed with
// a HEAD request and a small ranged GET.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plexbridge/plexbridge/internal/httpclient"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/observability"
)

// DefaultProbeTimeout bounds the HEAD/GET probe for auto streams.
const DefaultProbeTimeout = 5 * time.Second

// Sentinel errors classifying upstream failures.
var (
	// ErrUnreachable covers DNS failures and connect timeouts.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrMalformed covers upstream responses that cannot be classified.
	ErrMalformed = errors.New("upstream response malformed")

	// ErrProbeTimeout is returned when the probe deadline elapses.
	ErrProbeTimeout = errors.New("upstream probe timed out")
)

// HTTPError carries a non-2xx status returned by the upstream.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Status)
}

// Resolution is the outcome of resolving a stream.
type Resolution struct {
	// EffectiveURL is the URL handed to FFmpeg. For HLS this is the master
	// playlist URL unchanged; variant selection is FFmpeg's job.
	EffectiveURL string

	// Kind is the resolved upstream kind, never "auto".
	Kind models.StreamKind

	// ContentType is the probed Content-Type, empty when the kind was
	// declared or derived without an HTTP probe.
	ContentType string
}

// Detector resolves streams into upstream kinds. It never retries and never
// reads stream payload beyond the probe.
type Detector struct {
	client *http.Client
	logger *slog.Logger
}

// NewDetector creates a Detector with the given probe timeout. A zero
// timeout uses DefaultProbeTimeout.
func NewDetector(timeout time.Duration, logger *slog.Logger) *Detector {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Detector{
		client: httpclient.New(httpclient.Options{Timeout: timeout}),
		logger: observability.WithComponent(logger, "upstream"),
	}
}

// Resolve determines the effective URL and kind for a stream.
func (d *Detector) Resolve(ctx context.Context, stream *models.Stream) (*Resolution, error) {
	kind := models.StreamKind(strings.ToLower(string(stream.Kind)))

	// A declared kind is trusted as-is.
	if kind != models.StreamKindAuto && kind != "" {
		if !models.ValidStreamKind(kind) {
			return nil, models.ErrInvalidStreamKind
		}
		return &Resolution{EffectiveURL: stream.URL, Kind: kind}, nil
	}

	u, err := url.Parse(stream.URL)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q is not a valid URL", ErrMalformed, stream.URL)
	}

	switch strings.ToLower(u.Scheme) {
	case "udp":
		return &Resolution{EffectiveURL: stream.URL, Kind: models.StreamKindUDP}, nil
	case "rtsp":
		return &Resolution{EffectiveURL: stream.URL, Kind: models.StreamKindRTSP}, nil
	case "rtmp", "rtmps":
		return &Resolution{EffectiveURL: stream.URL, Kind: models.StreamKindRTMP}, nil
	case "http", "https":
		return d.probe(ctx, stream.URL, u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformed, u.Scheme)
	}
}

// probe issues a HEAD request, falling back to a small ranged GET when HEAD
// is rejected, and classifies the upstream from the Content-Type header and
// the URL path suffix.
func (d *Detector) probe(ctx context.Context, rawURL string, u *url.URL) (*Resolution, error) {
	contentType, err := d.probeContentType(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if kind, ok := kindFromContentType(contentType); ok {
		return &Resolution{EffectiveURL: rawURL, Kind: kind, ContentType: contentType}, nil
	}
	if kind, ok := kindFromSuffix(u.Path); ok {
		return &Resolution{EffectiveURL: rawURL, Kind: kind, ContentType: contentType}, nil
	}

	d.logger.Debug("probe inconclusive, defaulting to raw http",
		"url", rawURL, "content_type", contentType)
	return &Resolution{EffectiveURL: rawURL, Kind: models.StreamKindHTTP, ContentType: contentType}, nil
}

func (d *Detector) probeContentType(ctx context.Context, rawURL string) (string, error) {
	contentType, status, err := d.request(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		contentType, status, err = d.request(ctx, http.MethodGet, rawURL)
		if err != nil {
			return "", err
		}
	}
	if status >= 400 {
		return "", &HTTPError{Status: status}
	}
	return contentType, nil
}

func (d *Detector) request(ctx context.Context, method, rawURL string) (contentType string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if method == http.MethodGet {
		// Only the headers matter; ask for the first KiB to keep live
		// endpoints from streaming at us.
		req.Header.Set("Range", "bytes=0-1023")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, classifyTransportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	return resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w: %v", ErrProbeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func kindFromContentType(contentType string) (models.StreamKind, bool) {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/x-mpegurl", "audio/mpegurl":
		return models.StreamKindHLS, true
	case "application/dash+xml":
		return models.StreamKindDASH, true
	case "video/mp2t":
		return models.StreamKindMPEGTS, true
	}
	return "", false
}

func kindFromSuffix(path string) (models.StreamKind, bool) {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".m3u8"), strings.HasSuffix(p, ".m3u"):
		return models.StreamKindHLS, true
	case strings.HasSuffix(p, ".mpd"):
		return models.StreamKindDASH, true
	case strings.HasSuffix(p, ".ts"):
		return models.StreamKindMPEGTS, true
	}
	return "", false
}
