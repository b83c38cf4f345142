// Package ssdp announces the emulated tuner on the local network via SSDP
// so Plex can discover it without manual configuration.
package ssdp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/version"
)

// cacheMaxAge is the advertised validity of discovery responses in seconds.
const cacheMaxAge = 1800

// searchTargets are the notification types the responder answers for and
// announces. The uuid target carries a bare USN without a suffix.
func searchTargets(deviceUUID string) []string {
	return []string{
		"upnp:rootdevice",
		"urn:schemas-upnp-org:device:MediaServer:1",
		"uuid:" + deviceUUID,
	}
}

// Responder answers M-SEARCH queries with unicast 200 OK responses and
// multicasts periodic ssdp:alive announcements. BaseURL is resolved per
// message so address changes are picked up without restart.
type Responder struct {
	cfg        config.SSDPConfig
	deviceUUID string
	baseURL    func() string
	logger     *slog.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewResponder creates a Responder. baseURL supplies the advertised HTTP
// base for the LOCATION header.
func NewResponder(cfg config.SSDPConfig, deviceUUID string, baseURL func() string, logger *slog.Logger) *Responder {
	return &Responder{
		cfg:        cfg,
		deviceUUID: deviceUUID,
		baseURL:    baseURL,
		logger:     observability.WithComponent(logger, "ssdp"),
	}
}

// Start joins the multicast group, sends the initial alive burst, and begins
// answering searches and re-announcing on the configured interval.
func (r *Responder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("responder already started")
	}

	group := &net.UDPAddr{
		IP:   net.ParseIP(r.cfg.MulticastAddress),
		Port: r.cfg.DiscoveryPort,
	}
	if group.IP == nil {
		return fmt.Errorf("invalid multicast address %q", r.cfg.MulticastAddress)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return fmt.Errorf("joining SSDP multicast group: %w", err)
	}
	r.conn = conn

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(2)
	go r.listen(runCtx, group)
	go r.announce(runCtx, group)

	r.started = true
	r.logger.Info("SSDP responder started",
		"group", group.String(),
		"announce_interval", r.cfg.AnnounceInterval)
	return nil
}

// Stop multicasts ssdp:byebye for each target and shuts the responder down.
func (r *Responder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	conn := r.conn
	r.mu.Unlock()

	group := &net.UDPAddr{
		IP:   net.ParseIP(r.cfg.MulticastAddress),
		Port: r.cfg.DiscoveryPort,
	}
	r.sendByebye(group)

	cancel()
	_ = conn.Close()
	r.wg.Wait()
	r.logger.Info("SSDP responder stopped")
}

// listen answers M-SEARCH queries. Read deadlines keep the loop responsive
// to shutdown.
func (r *Responder) listen(ctx context.Context, group *net.UDPAddr) {
	defer r.wg.Done()

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Debug("SSDP read error", "error", err)
			continue
		}

		msg := string(buf[:n])
		if !strings.HasPrefix(msg, "M-SEARCH") {
			continue
		}
		r.respond(addr)
	}
}

// respond sends one unicast 200 OK per search target.
func (r *Responder) respond(addr *net.UDPAddr) {
	location := r.baseURL() + "/device.xml"
	for _, st := range searchTargets(r.deviceUUID) {
		resp := fmt.Sprintf(
			"HTTP/1.1 200 OK\r\n"+
				"CACHE-CONTROL: max-age=%d\r\n"+
				"EXT:\r\n"+
				"LOCATION: %s\r\n"+
				"SERVER: %s UPnP/1.0 %s\r\n"+
				"ST: %s\r\n"+
				"USN: %s\r\n"+
				"\r\n",
			cacheMaxAge, location, serverToken(), version.UserAgent(), st, r.usn(st))
		if _, err := r.conn.WriteToUDP([]byte(resp), addr); err != nil {
			r.logger.Debug("SSDP response write failed",
				"addr", addr.String(), "error", err)
			return
		}
	}
	r.logger.Debug("answered M-SEARCH", "addr", addr.String())
}

// announce multicasts the initial alive burst and re-announces on the
// configured interval.
func (r *Responder) announce(ctx context.Context, group *net.UDPAddr) {
	defer r.wg.Done()

	r.sendAlive(group)

	ticker := time.NewTicker(r.cfg.AnnounceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendAlive(group)
		}
	}
}

func (r *Responder) sendAlive(group *net.UDPAddr) {
	location := r.baseURL() + "/device.xml"
	for _, nt := range searchTargets(r.deviceUUID) {
		msg := fmt.Sprintf(
			"NOTIFY * HTTP/1.1\r\n"+
				"HOST: %s\r\n"+
				"CACHE-CONTROL: max-age=%d\r\n"+
				"LOCATION: %s\r\n"+
				"NT: %s\r\n"+
				"NTS: ssdp:alive\r\n"+
				"SERVER: %s UPnP/1.0 %s\r\n"+
				"USN: %s\r\n"+
				"\r\n",
			group.String(), cacheMaxAge, location, nt, serverToken(), version.UserAgent(), r.usn(nt))
		r.multicast(group, msg)
	}
}

func (r *Responder) sendByebye(group *net.UDPAddr) {
	for _, nt := range searchTargets(r.deviceUUID) {
		msg := fmt.Sprintf(
			"NOTIFY * HTTP/1.1\r\n"+
				"HOST: %s\r\n"+
				"NT: %s\r\n"+
				"NTS: ssdp:byebye\r\n"+
				"USN: %s\r\n"+
				"\r\n",
			group.String(), nt, r.usn(nt))
		r.multicast(group, msg)
	}
}

// multicast sends a NOTIFY over a short-lived socket; the listening socket
// is bound to the group and cannot be used for sending.
func (r *Responder) multicast(group *net.UDPAddr, msg string) {
	conn, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		r.logger.Debug("SSDP notify dial failed", "error", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(msg)); err != nil {
		r.logger.Debug("SSDP notify write failed", "error", err)
	}
}

// usn builds the unique service name for a notification type. The uuid
// target is its own USN; the others are suffixed onto the device uuid.
func (r *Responder) usn(nt string) string {
	if strings.HasPrefix(nt, "uuid:") {
		return nt
	}
	return fmt.Sprintf("uuid:%s::%s", r.deviceUUID, nt)
}

func serverToken() string {
	return "Linux/3.14"
}
