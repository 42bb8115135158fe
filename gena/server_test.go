package gena

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setNotifyHeaders(req *http.Request) {
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
}

func TestServer_HandleNotify_UnknownSIDReturns412(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")

	req := httptest.NewRequest("NOTIFY", "/event", bytes.NewReader([]byte(samplePropertySet)))
	setNotifyHeaders(req)
	req.Header.Set("SID", "uuid:unknown")
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestServer_HandleNotify_MissingSIDReturns400(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")

	req := httptest.NewRequest("NOTIFY", "/event", bytes.NewReader([]byte(samplePropertySet)))
	setNotifyHeaders(req)
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HandleNotify_BadNTSReturns400(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")

	req := httptest.NewRequest("NOTIFY", "/event", bytes.NewReader([]byte(samplePropertySet)))
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:something-else")
	req.Header.Set("SID", "uuid:sub-1")
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HandleNotify_WrongMethodReturns405(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")

	req := httptest.NewRequest(http.MethodGet, "/event", nil)
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_HandleNotify_DispatchesToRegisteredChannel(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")
	ch := make(chan Event, 1)
	s.register("uuid:sub-1", ch)

	req := httptest.NewRequest("NOTIFY", "/event", bytes.NewReader([]byte(samplePropertySet)))
	setNotifyHeaders(req)
	req.Header.Set("SID", "uuid:sub-1")
	req.Header.Set("SEQ", "3")
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case ev := <-ch:
		assert.Equal(t, "uuid:sub-1", ev.SID)
		assert.Equal(t, 3, ev.SEQ)
		require.Len(t, ev.Properties, 1)
		assert.Equal(t, "LastChange", ev.Properties[0].Name)
	default:
		t.Fatal("expected event to be dispatched")
	}
}

func TestServer_HandleNotify_MalformedBodyLoggedAndDropped(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")
	ch := make(chan Event, 1)
	s.register("uuid:sub-1", ch)

	req := httptest.NewRequest("NOTIFY", "/event", bytes.NewReader([]byte("not xml")))
	setNotifyHeaders(req)
	req.Header.Set("SID", "uuid:sub-1")
	rec := httptest.NewRecorder()

	s.handleNotify(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case ev := <-ch:
		t.Fatalf("expected no event to be dispatched, got %+v", ev)
	default:
	}
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/event")
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ready)
	}()
	<-ready

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, <-errCh)
}
