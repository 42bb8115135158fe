package xmlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeviceDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <URLBase>http://192.168.1.50:8080/</URLBase>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>Living Room Server</friendlyName>
    <UDN>uuid:4d696e69-444c-4e41-9d41-000102030405</UDN>
    <presentationURL>/index.html</presentationURL>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ContentDirectory</serviceId>
        <controlURL>/ctl/ContentDirectory</controlURL>
        <eventSubURL>/evt/ContentDirectory</eventSubURL>
        <SCPDURL>/ContentDirectory.xml</SCPDURL>
      </service>
    </serviceList>
  </device>
</root>`

func TestParseDeviceDescription(t *testing.T) {
	desc, err := ParseDeviceDescription([]byte(sampleDeviceDescription))
	require.NoError(t, err)

	assert.Equal(t, "uuid:4d696e69-444c-4e41-9d41-000102030405", desc.UDN)
	assert.Equal(t, "Living Room Server", desc.FriendlyName)
	assert.Equal(t, "http://192.168.1.50:8080/", desc.URLBase)
	require.Len(t, desc.Services, 1)
	assert.Equal(t, "urn:schemas-upnp-org:service:ContentDirectory:1", desc.Services[0].ServiceType)
}

func TestParseDeviceDescription_MissingUDN(t *testing.T) {
	_, err := ParseDeviceDescription([]byte(`<root><device></device></root>`))
	assert.Error(t, err)
}

func TestResolveServiceURLs(t *testing.T) {
	base, err := url.Parse("http://192.168.1.50:8080/")
	require.NoError(t, err)

	svc := ServiceDescription{
		ControlURL:  "/ctl/ContentDirectory",
		EventSubURL: "/evt/ContentDirectory",
		SCPDURL:     "/ContentDirectory.xml",
	}

	control, eventSub, scpd, err := ResolveServiceURLs(base, svc)
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.50:8080/ctl/ContentDirectory", control.String())
	assert.Equal(t, "http://192.168.1.50:8080/evt/ContentDirectory", eventSub.String())
	assert.Equal(t, "http://192.168.1.50:8080/ContentDirectory.xml", scpd.String())
}
