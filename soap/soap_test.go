package soap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upnpcp/httpclient"
)

func TestBuildEnvelope(t *testing.T) {
	body := BuildEnvelope(Action{
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
		Name:        "SetVolume",
		Args: []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Channel", Value: "Master"},
			{Name: "DesiredVolume", Value: "50"},
		},
	})
	s := string(body)
	assert.Contains(t, s, "<u:SetVolume")
	assert.Contains(t, s, "<InstanceID>0</InstanceID>")
	assert.Contains(t, s, "<Channel>Master</Channel>")
	assert.Contains(t, s, "<DesiredVolume>50</DesiredVolume>")
	assert.Contains(t, s, "</u:SetVolume>")
}

func TestBuildEnvelope_EscapesArguments(t *testing.T) {
	body := BuildEnvelope(Action{
		ServiceType: "urn:schemas-upnp-org:service:AVTransport:1",
		Name:        "SetAVTransportURI",
		Args: []Arg{
			{Name: "CurrentURIMetaData", Value: "<DIDL-Lite>&amp;</DIDL-Lite>"},
		},
	})
	assert.Contains(t, string(body), "&lt;DIDL-Lite&gt;")
}

func TestInvoke_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:GetVolumeResponse xmlns:u="urn:schemas-upnp-org:service:RenderingControl:1">
<CurrentVolume>42</CurrentVolume>
</u:GetVolumeResponse>
</s:Body>
</s:Envelope>`))
	}))
	defer srv.Close()

	client := httpclient.New(5 * time.Second)
	result, err := Invoke(context.Background(), client, Action{
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
		Name:        "GetVolume",
		ControlURL:  srv.URL,
		Args:        []Arg{{Name: "InstanceID", Value: "0"}, {Name: "Channel", Value: "Master"}},
	})
	require.NoError(t, err)
	require.Nil(t, result.Fault)
	value, ok := result.Get("CurrentVolume")
	require.True(t, ok)
	assert.Equal(t, "42", value)
}

func TestInvoke_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail>
<UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
<errorCode>402</errorCode>
<errorDescription>Invalid Args</errorDescription>
</UPnPError>
</detail>
</s:Fault>
</s:Body>
</s:Envelope>`))
	}))
	defer srv.Close()

	client := httpclient.New(5 * time.Second)
	result, err := Invoke(context.Background(), client, Action{
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
		Name:        "SetVolume",
		ControlURL:  srv.URL,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Fault)
	assert.Equal(t, 402, result.Fault.Code)
	assert.Equal(t, "Invalid Args", result.Fault.Description)
}

func TestInvoke_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := httpclient.New(5 * time.Second)
	_, err := Invoke(context.Background(), client, Action{
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
		Name:        "GetVolume",
		ControlURL:  srv.URL,
	})
	assert.Error(t, err)
}
