package gena

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upnpcp/httpclient"
)

func TestManager_Subscribe_RegistersWithServer(t *testing.T) {
	var subscribeCount int32
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SUBSCRIBE", r.Method)
		atomic.AddInt32(&subscribeCount, 1)
		w.Header().Set("SID", "uuid:sub-1")
		w.Header().Set("TIMEOUT", "Second-infinite")
		w.WriteHeader(http.StatusOK)
	}))
	defer publisher.Close()

	server := NewServer("127.0.0.1:0", "/event")
	client := httpclient.New(5 * time.Second)
	mgr := NewManager(server, client)

	sid, events, err := mgr.Subscribe(context.Background(), publisher.URL, "http://callback/event", 1800*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "uuid:sub-1", sid)
	assert.NotNil(t, events)
	assert.Equal(t, int32(1), atomic.LoadInt32(&subscribeCount))

	server.mu.RLock()
	_, registered := server.listeners[sid]
	server.mu.RUnlock()
	assert.True(t, registered)
}

func TestManager_Unsubscribe_ClosesChannelAndUnregisters(t *testing.T) {
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "SUBSCRIBE":
			w.Header().Set("SID", "uuid:sub-2")
			w.Header().Set("TIMEOUT", "Second-infinite")
			w.WriteHeader(http.StatusOK)
		case "UNSUBSCRIBE":
			assert.Equal(t, "uuid:sub-2", r.Header.Get("SID"))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer publisher.Close()

	server := NewServer("127.0.0.1:0", "/event")
	client := httpclient.New(5 * time.Second)
	mgr := NewManager(server, client)

	sid, events, err := mgr.Subscribe(context.Background(), publisher.URL, "http://callback/event", 1800*time.Second)
	require.NoError(t, err)

	require.NoError(t, mgr.Unsubscribe(context.Background(), sid))

	server.mu.RLock()
	_, registered := server.listeners[sid]
	server.mu.RUnlock()
	assert.False(t, registered)

	_, open := <-events
	assert.False(t, open)
}

func TestManager_Renew_412TriggersResubscribe(t *testing.T) {
	var initialSubscribes, renews int32
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("CALLBACK") != "" {
			// Initial SUBSCRIBE carries CALLBACK/NT; a RENEW carries only SID.
			atomic.AddInt32(&initialSubscribes, 1)
			w.Header().Set("SID", "uuid:sub-gen")
			w.Header().Set("TIMEOUT", "Second-1")
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(&renews, 1)
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer publisher.Close()

	server := NewServer("127.0.0.1:0", "/event")
	client := httpclient.New(5 * time.Second)
	mgr := NewManager(server, client)

	sid, _, err := mgr.Subscribe(context.Background(), publisher.URL, "http://callback/event", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "uuid:sub-gen", sid)

	// armRenewal fires RENEW at 3/4 of the granted Second-1 (~750ms); a 412 there should
	// trigger a fresh SUBSCRIBE carrying CALLBACK again.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&renews) >= 1 && atomic.LoadInt32(&initialSubscribes) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
