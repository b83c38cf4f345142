package ssdp

import (
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexbridge/plexbridge/internal/config"
)

const testUUID = "2f402f80-da50-11e1-9b23-abcd12340000"

func testResponder(t *testing.T) *Responder {
	t.Helper()
	r := NewResponder(config.SSDPConfig{
		AnnounceInterval: time.Hour,
		MulticastAddress: "239.255.255.250",
		DiscoveryPort:    1900,
	}, testUUID, func() string { return "http://tuner.local:5004" }, slog.New(slog.DiscardHandler))
	return r
}

// udpSink binds a local UDP socket and collects datagrams until count is
// reached or the deadline passes.
func udpSink(t *testing.T) (*net.UDPConn, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr)
}

func readDatagrams(t *testing.T, conn *net.UDPConn, count int) []string {
	t.Helper()
	var out []string
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(out) < count {
		n, _, err := conn.ReadFromUDP(buf)
		require.NoError(t, err)
		out = append(out, string(buf[:n]))
	}
	return out
}

func TestSearchTargetsAndUSN(t *testing.T) {
	r := testResponder(t)

	targets := searchTargets(testUUID)
	require.Len(t, targets, 3)
	assert.Equal(t, "upnp:rootdevice", targets[0])
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaServer:1", targets[1])
	assert.Equal(t, "uuid:"+testUUID, targets[2])

	assert.Equal(t, "uuid:"+testUUID+"::upnp:rootdevice", r.usn("upnp:rootdevice"))
	assert.Equal(t, "uuid:"+testUUID, r.usn("uuid:"+testUUID))
}

func TestRespondSendsOneResponsePerTarget(t *testing.T) {
	r := testResponder(t)

	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sock.Close()
	r.conn = sock

	client, clientAddr := udpSink(t)
	r.respond(clientAddr)

	responses := readDatagrams(t, client, 3)
	var sts []string
	for _, resp := range responses {
		assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
		assert.Contains(t, resp, "LOCATION: http://tuner.local:5004/device.xml\r\n")
		assert.Contains(t, resp, "EXT:\r\n")
		for _, line := range strings.Split(resp, "\r\n") {
			if st, ok := strings.CutPrefix(line, "ST: "); ok {
				sts = append(sts, st)
			}
		}
	}
	assert.ElementsMatch(t, searchTargets(testUUID), sts)
}

func TestAliveNotifications(t *testing.T) {
	r := testResponder(t)
	client, clientAddr := udpSink(t)

	r.sendAlive(clientAddr)

	for _, msg := range readDatagrams(t, client, 3) {
		assert.True(t, strings.HasPrefix(msg, "NOTIFY * HTTP/1.1\r\n"))
		assert.Contains(t, msg, "NTS: ssdp:alive\r\n")
		assert.Contains(t, msg, "LOCATION: http://tuner.local:5004/device.xml\r\n")
		assert.Contains(t, msg, "USN: uuid:"+testUUID)
	}
}

func TestByebyeNotifications(t *testing.T) {
	r := testResponder(t)
	client, clientAddr := udpSink(t)

	r.sendByebye(clientAddr)

	for _, msg := range readDatagrams(t, client, 3) {
		assert.Contains(t, msg, "NTS: ssdp:byebye\r\n")
		assert.NotContains(t, msg, "LOCATION:")
	}
}
