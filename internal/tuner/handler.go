// Package tuner serves the HDHomeRun emulation surface that Plex talks to:
// device discovery documents, the channel lineup, the M3U playlist, the
// XMLTV guide endpoint, and the live stream endpoint.
package tuner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/profile"
	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/internal/session"
	"github.com/plexbridge/plexbridge/internal/upstream"
)

// StreamOpener admits and serves streaming sessions.
type StreamOpener interface {
	Open(ctx context.Context, channel *models.Channel, clientIP string, kind models.ClientKind) (*session.Session, error)
	Stream(ctx context.Context, sess *session.Session, w io.Writer) error
}

// GuideEmitter writes the XMLTV guide document.
type GuideEmitter interface {
	WriteXMLTV(ctx context.Context, w io.Writer) error
}

// Handler implements the HDHomeRun HTTP surface.
type Handler struct {
	cfg      *config.Config
	channels repository.ChannelRepository
	streams  repository.StreamRepository
	sessions StreamOpener
	guide    GuideEmitter
	logger   *slog.Logger
}

// NewHandler creates the HDHomeRun surface handler.
func NewHandler(cfg *config.Config, repos *repository.Repositories, sessions StreamOpener, guide GuideEmitter, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		channels: repos.Channels,
		streams:  repos.Streams,
		sessions: sessions,
		guide:    guide,
		logger:   observability.WithComponent(logger, "tuner"),
	}
}

// Routes mounts the HDHomeRun endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/discover.json", h.handleDiscover)
	r.Get("/device.xml", h.handleDeviceXML)
	r.Get("/lineup.json", h.handleLineup)
	r.Get("/lineup_status.json", h.handleLineupStatus)
	r.Get("/playlist.m3u", h.handlePlaylist)
	r.Get("/epg/xmltv", h.handleXMLTV)
	r.Get("/stream/{ref}", h.handleStream)
}

// discoverResponse is the discover.json payload Plex uses to identify the
// tuner. Field names follow the HDHomeRun firmware exactly.
type discoverResponse struct {
	FriendlyName    string `json:"FriendlyName"`
	Manufacturer    string `json:"Manufacturer"`
	ModelNumber     string `json:"ModelNumber"`
	FirmwareName    string `json:"FirmwareName"`
	FirmwareVersion string `json:"FirmwareVersion"`
	DeviceID        string `json:"DeviceID"`
	DeviceAuth      string `json:"DeviceAuth"`
	BaseURL         string `json:"BaseURL"`
	LineupURL       string `json:"LineupURL"`
	TunerCount      int    `json:"TunerCount"`
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	base := h.BaseURL()
	writeJSON(w, http.StatusOK, discoverResponse{
		FriendlyName:    h.cfg.Tuner.FriendlyName,
		Manufacturer:    h.cfg.Tuner.Manufacturer,
		ModelNumber:     h.cfg.Tuner.ModelName,
		FirmwareName:    h.cfg.Tuner.FirmwareName,
		FirmwareVersion: h.cfg.Tuner.FirmwareVersion,
		DeviceID:        h.cfg.Tuner.DeviceID,
		DeviceAuth:      h.cfg.Tuner.DeviceAuth,
		BaseURL:         base,
		LineupURL:       base + "/lineup.json",
		TunerCount:      h.cfg.Tuner.TunerCount,
	})
}

// deviceXMLTemplate is the UPnP device description referenced by the SSDP
// LOCATION header.
const deviceXMLTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion>
    <major>1</major>
    <minor>0</minor>
  </specVersion>
  <URLBase>%s</URLBase>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>%s</manufacturer>
    <modelName>%s</modelName>
    <modelNumber>%s</modelNumber>
    <serialNumber>%s</serialNumber>
    <UDN>uuid:%s</UDN>
  </device>
</root>
`

func (h *Handler) handleDeviceXML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	fmt.Fprintf(w, deviceXMLTemplate,
		h.BaseURL(),
		h.cfg.Tuner.FriendlyName,
		h.cfg.Tuner.Manufacturer,
		h.cfg.Tuner.ModelName,
		h.cfg.Tuner.ModelName,
		h.cfg.Tuner.DeviceID,
		h.cfg.Tuner.DeviceUUID())
}

// lineupEntry is one lineup.json row. GuideNumber is a string per the
// HDHomeRun format even though channel numbers are integers.
type lineupEntry struct {
	GuideNumber string `json:"GuideNumber"`
	GuideName   string `json:"GuideName"`
	URL         string `json:"URL"`
}

func (h *Handler) handleLineup(w http.ResponseWriter, r *http.Request) {
	channels, err := h.lineupChannels(r.Context())
	if err != nil {
		h.logger.Error("building lineup", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal")
		return
	}

	base := h.BaseURL()
	lineup := make([]lineupEntry, 0, len(channels))
	for _, ch := range channels {
		lineup = append(lineup, lineupEntry{
			GuideNumber: strconv.Itoa(ch.Number),
			GuideName:   ch.Name,
			URL:         fmt.Sprintf("%s/stream/%d", base, ch.Number),
		})
	}
	writeJSON(w, http.StatusOK, lineup)
}

func (h *Handler) handleLineupStatus(w http.ResponseWriter, r *http.Request) {
	// Static payload: the lineup is configuration, there is no RF scan.
	writeJSON(w, http.StatusOK, map[string]any{
		"ScanInProgress": 0,
		"ScanPossible":   1,
		"Source":         "Cable",
		"SourceList":     []string{"Cable"},
	})
}

func (h *Handler) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	channels, err := h.lineupChannels(r.Context())
	if err != nil {
		h.logger.Error("building playlist", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal")
		return
	}

	base := h.BaseURL()
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, ch := range channels {
		b.WriteString(fmt.Sprintf("#EXTINF:-1 tvg-id=%q tvg-name=%q tvg-logo=%q tvg-chno=\"%d\",%s\n",
			ch.EpgID, ch.Name, ch.LogoURL, ch.Number, ch.Name))
		b.WriteString(fmt.Sprintf("%s/stream/%d\n", base, ch.Number))
	}

	w.Header().Set("Content-Type", "audio/x-mpegurl")
	_, _ = io.WriteString(w, b.String())
}

func (h *Handler) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if err := h.guide.WriteXMLTV(r.Context(), w); err != nil {
		h.logger.Error("writing XMLTV guide", "error", err)
	}
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	channel, err := h.resolveChannel(r.Context(), ref)
	if err != nil {
		h.logger.Error("resolving channel", "ref", ref, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal")
		return
	}
	if channel == nil || !channel.IsEnabled() {
		writeJSONError(w, http.StatusNotFound, "NoStream")
		return
	}

	kind := profile.DetectClientKind(r)
	sess, err := h.sessions.Open(r.Context(), channel, clientIP(r), kind)
	if err != nil {
		h.writeOpenError(w, channel, err)
		return
	}

	// Status and headers must be final before any payload bytes: chunked
	// MPEG-TS with no Content-Length.
	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if err := h.sessions.Stream(r.Context(), sess, w); err != nil {
		h.logger.Debug("stream ended with error",
			"session_id", sess.ID.String(), "error", err)
	}
}

// writeOpenError maps admission and spawn failures to status codes.
func (h *Handler) writeOpenError(w http.ResponseWriter, channel *models.Channel, err error) {
	var httpErr *upstream.HTTPError
	var startupErr *session.StartupError

	switch {
	case errors.Is(err, session.ErrNoStream):
		writeJSONError(w, http.StatusNotFound, "NoStream")
	case errors.Is(err, session.ErrCapacityFull):
		writeJSONError(w, http.StatusServiceUnavailable, "CapacityFull")
	case errors.Is(err, session.ErrPerChannelCapacityFull):
		writeJSONError(w, http.StatusServiceUnavailable, "PerChannelCapacityFull")
	case errors.Is(err, upstream.ErrUnreachable):
		writeJSONError(w, http.StatusBadGateway, "UpstreamUnreachable")
	case errors.Is(err, upstream.ErrMalformed):
		writeJSONError(w, http.StatusBadGateway, "UpstreamMalformed")
	case errors.Is(err, upstream.ErrProbeTimeout):
		writeJSONError(w, http.StatusBadGateway, "UpstreamTimeout")
	case errors.As(err, &httpErr):
		writeJSONError(w, http.StatusBadGateway, "UpstreamRejected")
	case errors.As(err, &startupErr):
		writeJSONError(w, http.StatusBadGateway, "UpstreamFailed")
	default:
		h.logger.Error("opening session",
			"channel", channel.Number, "error", err)
		writeJSONError(w, http.StatusBadGateway, "UpstreamFailed")
	}
}

// resolveChannel looks up a stream reference: channel number first, then
// channel ID.
func (h *Handler) resolveChannel(ctx context.Context, ref string) (*models.Channel, error) {
	if number, err := strconv.Atoi(ref); err == nil {
		return h.channels.GetByNumber(ctx, number)
	}
	id, err := models.ParseULID(ref)
	if err != nil {
		return nil, nil
	}
	return h.channels.GetByID(ctx, id)
}

// lineupChannels returns enabled channels that have an active upstream, in
// channel number order.
func (h *Handler) lineupChannels(ctx context.Context) ([]*models.Channel, error) {
	channels, err := h.channels.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		stream, err := h.streams.FirstEnabledForChannel(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		if stream == nil {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// BaseURL is the address advertised to Plex and in SSDP LOCATION headers.
// An advertised_host that already carries a scheme or an explicit port is
// used verbatim; a bare hostname gets the streaming port appended.
func (h *Handler) BaseURL() string {
	host := h.cfg.Server.AdvertisedHost
	if host == "" {
		host = outboundIP()
	}
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return "http://" + host
	}
	return fmt.Sprintf("http://%s:%d", host, h.cfg.Server.StreamingPort)
}

// outboundIP picks the local address used for outgoing traffic. The dial
// never sends a packet; it only selects a route.
func outboundIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
