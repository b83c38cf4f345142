package models

// SystemProfiles returns the built-in FFmpeg profiles seeded on first start.
// System profiles are immutable and undeletable. The "Passthrough" profile is
// the initial default: it remuxes the upstream into MPEG-TS without
// re-encoding, which is what Plex expects from a tuner.
func SystemProfiles() []FFmpegProfile {
	copyArgs := "-hide_banner -loglevel error -i [URL] -c copy -f mpegts pipe:1"
	hlsArgs := "-live_start_index -3"

	allClients := func() ProfileClients {
		clients := ProfileClients{}
		for _, kind := range []ClientKind{
			ClientWebBrowser, ClientAndroidMobile, ClientAndroidTV,
			ClientIOSMobile, ClientAppleTV,
		} {
			clients[kind] = ClientArgs{FFmpegArgs: copyArgs, HLSArgs: hlsArgs}
		}
		return clients
	}

	transcodeClients := ProfileClients{
		ClientWebBrowser: {
			FFmpegArgs: "-hide_banner -loglevel error -i [URL] " +
				"-c:v libx264 -preset veryfast -c:a aac -f mpegts pipe:1",
			HLSArgs: hlsArgs,
		},
		ClientAndroidTV: {
			FFmpegArgs: "-hide_banner -loglevel error -i [URL] " +
				"-c:v copy -c:a aac -f mpegts pipe:1",
			HLSArgs: hlsArgs,
		},
		ClientAppleTV: {
			FFmpegArgs: "-hide_banner -loglevel error -i [URL] " +
				"-c:v copy -c:a aac -f mpegts pipe:1",
			HLSArgs: hlsArgs,
		},
	}

	return []FFmpegProfile{
		{
			Name:      "Passthrough",
			IsDefault: true,
			IsSystem:  true,
			Clients:   allClients(),
		},
		{
			Name:     "Transcode Audio",
			IsSystem: true,
			Clients:  transcodeClients,
		},
	}
}
