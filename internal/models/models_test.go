package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULID_RoundTrip(t *testing.T) {
	id := NewULID()
	assert.False(t, id.IsZero())

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_JSON(t *testing.T) {
	id := NewULID()
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded ULID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	var zero ULID
	data, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestULID_Scan(t *testing.T) {
	id := NewULID()

	var scanned ULID
	require.NoError(t, scanned.Scan(id.String()))
	assert.Equal(t, id, scanned)

	require.NoError(t, scanned.Scan([]byte(id.String())))
	assert.Equal(t, id, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan(42))
}

func TestChannel_Validate(t *testing.T) {
	ch := Channel{Number: 5, Name: "CNN"}
	assert.NoError(t, ch.Validate())
	assert.True(t, ch.IsEnabled())

	ch.Number = 0
	assert.ErrorIs(t, ch.Validate(), ErrChannelNumberInvalid)

	ch = Channel{Number: 1}
	assert.ErrorIs(t, ch.Validate(), ErrNameRequired)

	ch = Channel{Number: 1, Name: "X", Enabled: BoolPtr(false)}
	assert.False(t, ch.IsEnabled())
}

func TestStream_Validate(t *testing.T) {
	s := Stream{
		ChannelID: NewULID(),
		Name:      "primary",
		URL:       "https://example.com/cnn.m3u8",
		Kind:      StreamKindHLS,
	}
	assert.NoError(t, s.Validate())

	s.Kind = ""
	require.NoError(t, s.Validate())
	assert.Equal(t, StreamKindAuto, s.Kind)

	s.Kind = "HLS"
	require.NoError(t, s.Validate())
	assert.Equal(t, StreamKindHLS, s.Kind)

	s.Kind = "smooth"
	assert.ErrorIs(t, s.Validate(), ErrInvalidStreamKind)

	s = Stream{Name: "x", URL: "https://example.com"}
	assert.ErrorIs(t, s.Validate(), ErrChannelIDRequired)

	s = Stream{ChannelID: NewULID(), Name: "x", URL: "not a url"}
	assert.ErrorIs(t, s.Validate(), ErrInvalidURL)
}

func TestFFmpegProfile_Validate(t *testing.T) {
	p := FFmpegProfile{
		Name: "copy",
		Clients: ProfileClients{
			ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
		},
	}
	assert.NoError(t, p.Validate())

	args, ok := p.ClientArgs(ClientWebBrowser)
	assert.True(t, ok)
	assert.Contains(t, args.FFmpegArgs, "[URL]")

	_, ok = p.ClientArgs(ClientAppleTV)
	assert.False(t, ok)

	p.Clients = ProfileClients{}
	assert.ErrorIs(t, p.Validate(), ErrProfileNoClients)

	p.Clients = ProfileClients{"smart_fridge": {FFmpegArgs: "x"}}
	assert.ErrorIs(t, p.Validate(), ErrInvalidClientKind)
}

func TestProfileClients_ValueScan(t *testing.T) {
	clients := ProfileClients{
		ClientWebBrowser: {FFmpegArgs: "-i [URL]", HLSArgs: "-live_start_index -3"},
	}

	v, err := clients.Value()
	require.NoError(t, err)

	var scanned ProfileClients
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, clients, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)
}

func TestEpgProgram_Validate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := EpgProgram{
		SourceID: NewULID(),
		EpgID:    "bbc1",
		Start:    start,
		Stop:     start.Add(time.Hour),
		Title:    "News",
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, time.Hour, p.Duration())

	p.Stop = p.Start
	assert.ErrorIs(t, p.Validate(), ErrInvalidTimeRange)

	p.Stop = p.Start.Add(time.Hour)
	p.Title = ""
	assert.ErrorIs(t, p.Validate(), ErrTitleRequired)

	p.Title = "News"
	p.EpgID = ""
	assert.ErrorIs(t, p.Validate(), ErrEpgIDRequired)
}

func TestEpgSource_Validate(t *testing.T) {
	s := EpgSource{Name: "guide", URL: "https://example.com/epg.xml.gz", RefreshInterval: time.Hour}
	assert.NoError(t, s.Validate())

	s.RefreshInterval = 0
	assert.ErrorIs(t, s.Validate(), ErrRefreshIntervalInvalid)
}

func TestSystemProfiles(t *testing.T) {
	profiles := SystemProfiles()
	require.NotEmpty(t, profiles)

	defaults := 0
	for _, p := range profiles {
		assert.True(t, p.IsSystem)
		require.NoError(t, p.Validate())
		if p.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	// The default profile must cover every client kind so resolution
	// always terminates.
	for _, p := range profiles {
		if !p.IsDefault {
			continue
		}
		for _, kind := range []ClientKind{
			ClientWebBrowser, ClientAndroidMobile, ClientAndroidTV,
			ClientIOSMobile, ClientAppleTV,
		} {
			_, ok := p.ClientArgs(kind)
			assert.True(t, ok, "default profile missing %s", kind)
		}
	}
}
