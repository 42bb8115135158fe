// Package mediarenderer composes ConnectionManager, RenderingControl, and
// an optional AVTransport behind a single device-level handle, tracking
// the active connection used to forward transport and volume operations
//.
package mediarenderer

import (
	"context"
	"fmt"
	"sync"

	"upnpcp/avtransport"
	"upnpcp/connectionmanager"
	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/mediaserver"
	"upnpcp/renderingcontrol"
	"upnpcp/upnp"
	"upnpcp/upnperrors"
)

// UnknownConnectionID marks "no active connection".
const UnknownConnectionID = -1

// DefaultConnectionID is the always-present fallback connection every
// UPnP/AV renderer implements.
const DefaultConnectionID = 0

// MediaRenderer aggregates the services a UPnP MediaRenderer:1 device
// exposes and tracks which connection its transport/volume operations
// forward through.
type MediaRenderer struct {
	UDN    string
	Device upnp.Device

	ConnectionManager *connectionmanager.Client
	RenderingControl  *renderingcontrol.Client
	AVTransport       *avtransport.Client

	mu            sync.RWMutex
	connectionID  int
	avTransportID int
	rcsID         int
}

// Bind constructs and binds every service this device exposes. The active
// connection starts Unknown; call UseDefaultConnection or
// PrepareConnection before issuing transport operations.
func Bind(ctx context.Context, device *upnp.Device, httpClient *httpclient.Client, genaManager *gena.Manager) (*MediaRenderer, error) {
	if !device.HasService(upnp.RenderingControl) || !device.HasService(upnp.ConnectionManager) {
		return nil, fmt.Errorf("device %s is not a MediaRenderer: missing RenderingControl or ConnectionManager", device.UDN)
	}

	cm := connectionmanager.New(httpClient, genaManager)
	if err := cm.Bind(ctx, device); err != nil {
		return nil, fmt.Errorf("bind ConnectionManager: %w", err)
	}

	rc := renderingcontrol.New(httpClient, genaManager)
	if err := rc.Bind(ctx, device); err != nil {
		return nil, fmt.Errorf("bind RenderingControl: %w", err)
	}

	r := &MediaRenderer{
		UDN:               device.UDN,
		Device:            *device,
		ConnectionManager: cm,
		RenderingControl:  rc,
		connectionID:      UnknownConnectionID,
	}

	if device.HasService(upnp.AVTransport) {
		avt := avtransport.New(httpClient, genaManager)
		if err := avt.Bind(ctx, device); err != nil {
			return nil, fmt.Errorf("bind AVTransport: %w", err)
		}
		r.AVTransport = avt
	}

	return r, nil
}

// UseDefaultConnection sets the active connection to the always-present
// connection 0.
func (r *MediaRenderer) UseDefaultConnection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectionID = DefaultConnectionID
	r.avTransportID = DefaultConnectionID
	r.rcsID = DefaultConnectionID
}

// PrepareConnection issues PrepareForConnection to both this renderer and
// server when both declare support for it; otherwise both sides fall back
// to the default connection.
func (r *MediaRenderer) PrepareConnection(ctx context.Context, server *mediaserver.MediaServer, protocolInfo upnp.ProtocolInfo) error {
	rendererSupports := r.ConnectionManager.SupportsAction("PrepareForConnection")
	serverSupports := server.ConnectionManager != nil && server.ConnectionManager.SupportsAction("PrepareForConnection")

	if !rendererSupports || !serverSupports {
		r.UseDefaultConnection()
		return nil
	}

	serverResult, err := server.ConnectionManager.PrepareForConnection(ctx, protocolInfo, "", -1, connectionmanager.DirectionOutput)
	if err != nil {
		return fmt.Errorf("prepare server connection: %w", err)
	}

	rendererResult, err := r.ConnectionManager.PrepareForConnection(ctx, protocolInfo, server.UDN, serverResult.ConnectionID, connectionmanager.DirectionInput)
	if err != nil {
		return fmt.Errorf("prepare renderer connection: %w", err)
	}

	r.mu.Lock()
	r.connectionID = rendererResult.ConnectionID
	r.avTransportID = rendererResult.AVTransportID
	r.rcsID = rendererResult.RcsID
	r.mu.Unlock()

	return nil
}

func (r *MediaRenderer) instanceIDs() (avTransportID, rcsID int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.connectionID == UnknownConnectionID {
		return 0, 0, &upnperrors.InvalidStateError{Reason: "no active connection"}
	}
	return r.avTransportID, r.rcsID, nil
}

// SetTransportItem points the active connection's AVTransport at uri with
// the given DIDL-Lite metadata.
func (r *MediaRenderer) SetTransportItem(ctx context.Context, uri, metaData string) error {
	if r.AVTransport == nil {
		return &upnperrors.InvalidStateError{Reason: "device has no AVTransport service"}
	}
	avID, _, err := r.instanceIDs()
	if err != nil {
		return err
	}
	return r.AVTransport.SetAVTransportURI(ctx, avID, uri, metaData)
}

// Play starts playback on the active connection at normal speed.
func (r *MediaRenderer) Play(ctx context.Context) error {
	if r.AVTransport == nil {
		return &upnperrors.InvalidStateError{Reason: "device has no AVTransport service"}
	}
	avID, _, err := r.instanceIDs()
	if err != nil {
		return err
	}
	return r.AVTransport.Play(ctx, avID, "1")
}

// Pause pauses playback on the active connection.
func (r *MediaRenderer) Pause(ctx context.Context) error {
	if r.AVTransport == nil {
		return &upnperrors.InvalidStateError{Reason: "device has no AVTransport service"}
	}
	avID, _, err := r.instanceIDs()
	if err != nil {
		return err
	}
	return r.AVTransport.Pause(ctx, avID)
}

// Stop stops playback on the active connection.
func (r *MediaRenderer) Stop(ctx context.Context) error {
	if r.AVTransport == nil {
		return &upnperrors.InvalidStateError{Reason: "device has no AVTransport service"}
	}
	avID, _, err := r.instanceIDs()
	if err != nil {
		return err
	}
	return r.AVTransport.Stop(ctx, avID)
}

// GetCurrentTrackInfo returns the active connection's current position
// info.
func (r *MediaRenderer) GetCurrentTrackInfo(ctx context.Context) (*avtransport.PositionInfo, error) {
	if r.AVTransport == nil {
		return nil, &upnperrors.InvalidStateError{Reason: "device has no AVTransport service"}
	}
	avID, _, err := r.instanceIDs()
	if err != nil {
		return nil, err
	}
	return r.AVTransport.GetPositionInfo(ctx, avID)
}

// GetVolume returns the active connection's master-channel volume.
func (r *MediaRenderer) GetVolume(ctx context.Context) (int, error) {
	_, rcsID, err := r.instanceIDs()
	if err != nil {
		return 0, err
	}
	return r.RenderingControl.GetVolume(ctx, rcsID, renderingcontrol.DefaultChannel)
}

// SetVolume sets the active connection's master-channel volume, clamped to
// the device's declared range.
func (r *MediaRenderer) SetVolume(ctx context.Context, desired int) error {
	_, rcsID, err := r.instanceIDs()
	if err != nil {
		return err
	}
	return r.RenderingControl.SetVolume(ctx, rcsID, renderingcontrol.DefaultChannel, desired)
}
