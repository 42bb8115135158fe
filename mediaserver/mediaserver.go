// Package mediaserver composes ContentDirectory with an optional
// ConnectionManager and an optional AVTransport behind a single
// device-level handle.
package mediaserver

import (
	"context"
	"fmt"

	"upnpcp/avtransport"
	"upnpcp/connectionmanager"
	"upnpcp/contentdirectory"
	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/upnp"
)

// MediaServer aggregates the services a UPnP MediaServer:1 device exposes.
type MediaServer struct {
	UDN    string
	Device upnp.Device

	ContentDirectory *contentdirectory.Client
	ConnectionManager *connectionmanager.Client
	AVTransport      *avtransport.Client // nil if the device doesn't expose one
}

// Bind constructs and binds every service this device exposes, loading
// ContentDirectory's sort/search capabilities at bind time.
func Bind(ctx context.Context, device *upnp.Device, httpClient *httpclient.Client, genaManager *gena.Manager) (*MediaServer, error) {
	if !device.HasService(upnp.ContentDirectory) {
		return nil, fmt.Errorf("device %s is not a MediaServer: no ContentDirectory service", device.UDN)
	}

	cd := contentdirectory.New(httpClient, genaManager)
	if err := cd.Bind(ctx, device); err != nil {
		return nil, fmt.Errorf("bind ContentDirectory: %w", err)
	}
	if err := cd.LoadCapabilities(ctx); err != nil {
		return nil, fmt.Errorf("load ContentDirectory capabilities: %w", err)
	}

	ms := &MediaServer{UDN: device.UDN, Device: *device, ContentDirectory: cd}

	if device.HasService(upnp.ConnectionManager) {
		cm := connectionmanager.New(httpClient, genaManager)
		if err := cm.Bind(ctx, device); err != nil {
			return nil, fmt.Errorf("bind ConnectionManager: %w", err)
		}
		ms.ConnectionManager = cm
	}

	if device.HasService(upnp.AVTransport) {
		avt := avtransport.New(httpClient, genaManager)
		if err := avt.Bind(ctx, device); err != nil {
			return nil, fmt.Errorf("bind AVTransport: %w", err)
		}
		ms.AVTransport = avt
	}

	return ms, nil
}
