package upnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServiceType(t *testing.T) {
	kind, version, ok := ParseServiceType("urn:schemas-upnp-org:service:AVTransport:1")
	require.True(t, ok)
	assert.Equal(t, AVTransport, kind)
	assert.Equal(t, 1, version)
}

func TestParseServiceType_Unknown(t *testing.T) {
	_, _, ok := ParseServiceType("urn:schemas-upnp-org:service:ScheduledRecording:1")
	assert.False(t, ok)
}

func TestServiceType_RoundTrip(t *testing.T) {
	s := ServiceType(RenderingControl, 1)
	kind, version, ok := ParseServiceType(s)
	require.True(t, ok)
	assert.Equal(t, RenderingControl, kind)
	assert.Equal(t, 1, version)
}

func TestDevice_HasService(t *testing.T) {
	d := Device{Services: map[ServiceKind]Service{
		ContentDirectory: {Kind: ContentDirectory},
	}}
	assert.True(t, d.HasService(ContentDirectory))
	assert.False(t, d.HasService(AVTransport))
}

func TestParseProtocolInfo(t *testing.T) {
	pi, ok := ParseProtocolInfo("http-get:*:audio/mpeg:*")
	require.True(t, ok)
	assert.Equal(t, ProtocolInfo{Protocol: "http-get", Network: "*", ContentType: "audio/mpeg", Extra: "*"}, pi)
	assert.Equal(t, "http-get:*:audio/mpeg:*", pi.String())
}

func TestParseProtocolInfo_Malformed(t *testing.T) {
	_, ok := ParseProtocolInfo("not-enough-fields")
	assert.False(t, ok)
}
