package xmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSCPD = `<?xml version="1.0"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <actionList>
    <action><name>SetVolume</name></action>
    <action><name>GetVolume</name></action>
  </actionList>
  <serviceStateTable>
    <stateVariable sendEvents="no">
      <name>Volume</name>
      <dataType>ui2</dataType>
      <allowedValueRange>
        <minimum>0</minimum>
        <maximum>100</maximum>
        <step>1</step>
      </allowedValueRange>
    </stateVariable>
    <stateVariable sendEvents="yes">
      <name>LastChange</name>
      <dataType>string</dataType>
    </stateVariable>
  </serviceStateTable>
</scpd>`

func TestParseSCPD(t *testing.T) {
	scpd, err := ParseSCPD([]byte(sampleSCPD))
	require.NoError(t, err)

	assert.True(t, scpd.HasAction("SetVolume"))
	assert.True(t, scpd.HasAction("GetVolume"))
	assert.False(t, scpd.HasAction("Seek"))

	vol, ok := scpd.Variable("Volume")
	require.True(t, ok)
	assert.True(t, vol.Range.Present)
	assert.Equal(t, 0.0, vol.Range.Min)
	assert.Equal(t, 100.0, vol.Range.Max)

	lastChange, ok := scpd.Variable("LastChange")
	require.True(t, ok)
	assert.True(t, lastChange.SendEvents)
	assert.False(t, lastChange.Range.Present)
}

func TestSCPD_Variable_Unknown(t *testing.T) {
	scpd, err := ParseSCPD([]byte(sampleSCPD))
	require.NoError(t, err)
	_, ok := scpd.Variable("NoSuchVariable")
	assert.False(t, ok)
}
