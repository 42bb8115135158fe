package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	status, body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", string(body))
}

func TestClient_Post_SetsHeaders(t *testing.T) {
	var gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPACTION")
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	status, _, _, err := c.Post(context.Background(), srv.URL, "text/xml", []byte("payload"), map[string]string{
		"SOAPACTION": `"urn:test#Action"`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"urn:test#Action"`, gotAction)
}

func TestClient_Subscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SUBSCRIBE", r.Method)
		assert.Equal(t, "<http://cb/event>", r.Header.Get("CALLBACK"))
		assert.Equal(t, "upnp:event", r.Header.Get("NT"))
		w.Header().Set("SID", "uuid:sub-1")
		w.Header().Set("TIMEOUT", "Second-1800")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	result, err := c.Subscribe(context.Background(), srv.URL, "http://cb/event", 1800*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "uuid:sub-1", result.SID)
	assert.Equal(t, 1800*time.Second, result.GrantedTimeout)
}

func TestClient_Renew_PropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	c := New(5 * time.Second)
	_, err := c.Renew(context.Background(), srv.URL, "uuid:sub-1", 1800*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "412")
}

func TestParseTimeoutHeader(t *testing.T) {
	d, err := parseTimeoutHeader("Second-1800")
	require.NoError(t, err)
	assert.Equal(t, 1800*time.Second, d)

	d, err = parseTimeoutHeader("Second-infinite")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	_, err = parseTimeoutHeader("")
	assert.Error(t, err)
}
