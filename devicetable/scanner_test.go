package devicetable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upnpcp/httpclient"
	"upnpcp/ssdp"
)

const sampleDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>Living Room Server</friendlyName>
    <UDN>uuid:4d696e69-444c-4e41-9d41-000102030405</UDN>
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

func newTestScanner(t *testing.T, events chan Event) (*Scanner, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDescription))
	}))

	s := NewScanner(nil, httpclient.New(5*time.Second), []Kind{MediaServer})
	s.WithEvents(events)
	return s, server
}

func TestScanner_HandleSSDPEvent_AliveFetchesAndEmitsDiscovered(t *testing.T) {
	events := make(chan Event, 1)
	s, server := newTestScanner(t, events)
	defer server.Close()

	info := ssdp.Info{
		Kind:              ssdp.Alive,
		UDN:               "uuid:4d696e69-444c-4e41-9d41-000102030405",
		Location:          server.URL + "/desc.xml",
		ExpirationSeconds: 1800,
	}
	s.handleSSDPEvent(context.Background(), info)

	require.Eventually(t, func() bool {
		_, ok := s.Table().Get(info.UDN)
		return ok
	}, time.Second, 10*time.Millisecond)

	ev := <-events
	assert.Equal(t, Discovered, ev.Type)
	assert.Equal(t, info.UDN, ev.Device.UDN)
}

func TestScanner_HandleSSDPEvent_ByeByeRemoves(t *testing.T) {
	events := make(chan Event, 2)
	s, server := newTestScanner(t, events)
	defer server.Close()

	info := ssdp.Info{
		Kind:              ssdp.Alive,
		UDN:               "uuid:4d696e69-444c-4e41-9d41-000102030405",
		Location:          server.URL + "/desc.xml",
		ExpirationSeconds: 1800,
	}
	s.handleSSDPEvent(context.Background(), info)
	require.Eventually(t, func() bool {
		_, ok := s.Table().Get(info.UDN)
		return ok
	}, time.Second, 10*time.Millisecond)
	<-events // Discovered

	s.handleSSDPEvent(context.Background(), ssdp.Info{Kind: ssdp.ByeBye, UDN: info.UDN})

	ev := <-events
	assert.Equal(t, Disappeared, ev.Type)

	_, ok := s.Table().Get(info.UDN)
	assert.False(t, ok)
}

func TestScanner_HandleSSDPEvent_SameLocationExtendsTTLWithoutRefetch(t *testing.T) {
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write([]byte(sampleDescription))
	}))
	defer server.Close()

	events := make(chan Event, 2)
	s := NewScanner(nil, httpclient.New(5*time.Second), []Kind{MediaServer})
	s.WithEvents(events)

	info := ssdp.Info{
		Kind:              ssdp.Alive,
		UDN:               "uuid:4d696e69-444c-4e41-9d41-000102030405",
		Location:          server.URL + "/desc.xml",
		ExpirationSeconds: 1800,
	}
	s.handleSSDPEvent(context.Background(), info)
	require.Eventually(t, func() bool {
		_, ok := s.Table().Get(info.UDN)
		return ok
	}, time.Second, 10*time.Millisecond)
	<-events

	s.handleSSDPEvent(context.Background(), info)

	select {
	case ev := <-events:
		t.Fatalf("expected no event from a same-location re-advertisement, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, fetches)
}

func TestScanner_HandleSSDPEvent_IgnoresEventsWithoutUDN(t *testing.T) {
	events := make(chan Event, 1)
	s, server := newTestScanner(t, events)
	defer server.Close()

	s.handleSSDPEvent(context.Background(), ssdp.Info{Kind: ssdp.Alive, Location: server.URL})

	select {
	case ev := <-events:
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScanner_Refresh_SearchesEveryConfiguredKind(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := ssdp.Start(ctx, nil)
	require.NoError(t, err)
	defer client.Close()

	s := NewScanner(client, httpclient.New(5*time.Second), []Kind{MediaServer, MediaRenderer})
	assert.NoError(t, s.Refresh())
}
