// Package profile resolves FFmpeg argument templates for a stream and a
// client kind, and classifies Plex clients from request headers.
package profile

import (
	"net/http"
	"strings"

	"github.com/plexbridge/plexbridge/internal/models"
)

// Plex identification headers inspected alongside the User-Agent.
const (
	HeaderPlexProduct    = "X-Plex-Product"
	HeaderPlexPlatform   = "X-Plex-Platform"
	HeaderPlexDeviceName = "X-Plex-Device-Name"
)

// DetectClientKind classifies the requesting client from its User-Agent and
// Plex headers. Anything unrecognized is treated as a web browser, which is
// the most conservative transcoding target.
func DetectClientKind(r *http.Request) models.ClientKind {
	ua := r.Header.Get("User-Agent")
	product := r.Header.Get(HeaderPlexProduct)
	platform := r.Header.Get(HeaderPlexPlatform)
	device := r.Header.Get(HeaderPlexDeviceName)

	signal := strings.ToLower(ua + " " + product + " " + platform + " " + device)

	isPlex := strings.Contains(signal, "plex") ||
		product != "" || platform != "" || device != ""
	if !isPlex {
		return models.ClientWebBrowser
	}

	switch {
	case strings.Contains(signal, "android") && strings.Contains(signal, "tv"),
		strings.EqualFold(device, "AndroidTV"):
		return models.ClientAndroidTV
	case strings.Contains(signal, "android"):
		return models.ClientAndroidMobile
	case strings.Contains(signal, "tvos"), strings.Contains(signal, "appletv"),
		strings.Contains(signal, "apple tv"):
		return models.ClientAppleTV
	case strings.Contains(signal, "ios"), strings.Contains(signal, "iphone"),
		strings.Contains(signal, "ipad"):
		return models.ClientIOSMobile
	default:
		return models.ClientWebBrowser
	}
}
