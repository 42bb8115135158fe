package gena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePropertySet = `<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property>
    <LastChange>&lt;Event&gt;&lt;InstanceID val="0"&gt;&lt;TransportState val="PLAYING"/&gt;&lt;/InstanceID&gt;&lt;/Event&gt;</LastChange>
  </e:property>
</e:propertyset>`

func TestParsePropertySet(t *testing.T) {
	props, err := parsePropertySet([]byte(samplePropertySet))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "LastChange", props[0].Name)
	assert.Contains(t, props[0].Value, "TransportState")
}

func TestParsePropertySet_Malformed(t *testing.T) {
	_, err := parsePropertySet([]byte("not xml"))
	assert.Error(t, err)
}
