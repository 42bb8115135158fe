package xmlutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDIDL = `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">
  <container id="1" parentID="0" restricted="1" childCount="2">
    <dc:title>Music</dc:title>
    <upnp:class>object.container.storageFolder</upnp:class>
  </container>
  <item id="2" parentID="1" restricted="1">
    <dc:title>Track One</dc:title>
    <upnp:class>object.item.audioItem.musicTrack</upnp:class>
    <res protocolInfo="http-get:*:audio/mpeg:*">http://server/track1.mp3</res>
  </item>
</DIDL-Lite>`

func TestParseDIDLLite(t *testing.T) {
	didl, err := ParseDIDLLite([]byte(sampleDIDL))
	require.NoError(t, err)
	require.Len(t, didl.Objects, 2)

	container := didl.Objects[0]
	assert.True(t, container.IsContainer)
	assert.Equal(t, "1", container.ID)
	require.NotNil(t, container.ChildCount)
	assert.Equal(t, 2, *container.ChildCount)
	assert.Equal(t, "Music", container.Title)

	item := didl.Objects[1]
	assert.False(t, item.IsContainer)
	assert.Equal(t, "Track One", item.Title)
	require.Len(t, item.Resources, 1)
	assert.Equal(t, "http-get:*:audio/mpeg:*", item.Resources[0].ProtocolInfo)
	assert.Equal(t, "http://server/track1.mp3", item.Resources[0].URL)
}

func TestParseDIDLLite_PreservesDocumentOrder(t *testing.T) {
	didl, err := ParseDIDLLite([]byte(sampleDIDL))
	require.NoError(t, err)
	require.Len(t, didl.Objects, 2)
	assert.Equal(t, "1", didl.Objects[0].ID)
	assert.Equal(t, "2", didl.Objects[1].ID)
}

func TestParseDIDLLite_FullStructure(t *testing.T) {
	didl, err := ParseDIDLLite([]byte(sampleDIDL))
	require.NoError(t, err)

	childCount := 2
	want := []RawDIDLObject{
		{
			ID:          "1",
			ParentID:    "0",
			Restricted:  true,
			IsContainer: true,
			ChildCount:  &childCount,
			Title:       "Music",
			Class:       "object.container.storageFolder",
		},
		{
			ID:          "2",
			ParentID:    "1",
			Restricted:  true,
			IsContainer: false,
			Title:       "Track One",
			Class:       "object.item.audioItem.musicTrack",
			Resources: []RawResource{
				{ProtocolInfo: "http-get:*:audio/mpeg:*", URL: "http://server/track1.mp3"},
			},
		},
	}
	if diff := cmp.Diff(want, didl.Objects); diff != "" {
		t.Errorf("parsed DIDL-Lite objects mismatch (-want +got):\n%s", diff)
	}
}

const sampleLastChange = `<Event xmlns="urn:schemas-upnp-org:metadata-1-0/AVT/">
  <InstanceID val="0">
    <TransportState val="PLAYING"/>
    <CurrentTrack val="3"/>
  </InstanceID>
</Event>`

func TestParseLastChange(t *testing.T) {
	instances, err := ParseLastChange([]byte(sampleLastChange))
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, 0, instances[0].InstanceID)

	values := map[string]string{}
	for _, v := range instances[0].Variables {
		values[v.Name] = v.Value
	}
	assert.Equal(t, "PLAYING", values["TransportState"])
	assert.Equal(t, "3", values["CurrentTrack"])
}
