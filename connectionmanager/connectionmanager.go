// Package connectionmanager implements the ConnectionManager:1 typed
// service client: protocol-info queries and connection
// lifecycle, plus the 701-707 fault-code taxonomy.
package connectionmanager

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/service"
	"upnpcp/soap"
	"upnpcp/upnp"
	"upnpcp/upnperrors"
)

// Direction is a connection's data-flow direction.
type Direction string

const (
	DirectionInput  Direction = "Input"
	DirectionOutput Direction = "Output"
)

// ConnectionStatus is a connection's lifecycle status.
type ConnectionStatus string

const (
	StatusOK                    ConnectionStatus = "OK"
	StatusContentFormatMismatch ConnectionStatus = "ContentFormatMismatch"
	StatusInsufficientBandwidth ConnectionStatus = "InsufficientBandwidth"
	StatusUnreliableChannel     ConnectionStatus = "UnreliableChannel"
	StatusUnknown               ConnectionStatus = "Unknown"
)

// ConnectionInfo is GetCurrentConnectionInfo's result.
type ConnectionInfo struct {
	RcsID                 int
	AVTransportID         int
	ProtocolInfo          upnp.ProtocolInfo
	PeerConnectionManager string
	PeerConnectionID      int
	Direction             Direction
	Status                ConnectionStatus
}

// PrepareResult is PrepareForConnection's result.
type PrepareResult struct {
	ConnectionID  int
	AVTransportID int
	RcsID         int
}

// ConnectionManagerFaultKind names the 701-707 UPnPError codes this
// service defines.
type ConnectionManagerFaultKind string

const (
	FaultIncompatibleProtocolInfo   ConnectionManagerFaultKind = "IncompatibleProtocolInfo"
	FaultIncompatibleDirections     ConnectionManagerFaultKind = "IncompatibleDirections"
	FaultInsufficientResources      ConnectionManagerFaultKind = "InsufficientResources"
	FaultLocalRestrictions          ConnectionManagerFaultKind = "LocalRestrictions"
	FaultAccessDenied               ConnectionManagerFaultKind = "AccessDenied"
	FaultInvalidConnectionReference ConnectionManagerFaultKind = "InvalidConnectionReference"
	FaultNotInSameNetwork           ConnectionManagerFaultKind = "NotInSameNetwork"
)

var faultCodes = map[int]ConnectionManagerFaultKind{
	701: FaultIncompatibleProtocolInfo,
	702: FaultIncompatibleDirections,
	703: FaultInsufficientResources,
	704: FaultLocalRestrictions,
	705: FaultAccessDenied,
	706: FaultInvalidConnectionReference,
	707: FaultNotInSameNetwork,
}

// FromFaultCode maps a UPnPError code to its named kind, if it is one of
// ConnectionManager's defined 701-707 codes.
func FromFaultCode(code int) (ConnectionManagerFaultKind, bool) {
	k, ok := faultCodes[code]
	return k, ok
}

// ClassifyFault maps a SoapFault's code to its named kind, if it is one of
// ConnectionManager's defined 701-707 codes.
func ClassifyFault(f *upnperrors.SoapFault) (ConnectionManagerFaultKind, bool) {
	return FromFaultCode(f.Code)
}

// Client is the ConnectionManager:1 typed service client.
type Client struct {
	*service.Base
}

// New builds an unbound ConnectionManager client.
func New(httpClient *httpclient.Client, genaManager *gena.Manager) *Client {
	return &Client{Base: service.NewBase(upnp.ConnectionManager, httpClient, genaManager)}
}

// GetProtocolInfo returns the device's supported Source and Sink protocol
// info lists, skipping malformed CSV tokens with a warning.
func (c *Client) GetProtocolInfo(ctx context.Context) (source, sink []upnp.ProtocolInfo, err error) {
	result, err := c.Invoke(ctx, "GetProtocolInfo", nil)
	if err != nil {
		return nil, nil, err
	}
	sourceRaw, _ := result.Get("Source")
	sinkRaw, _ := result.Get("Sink")
	return parseProtocolInfoCSV(sourceRaw), parseProtocolInfoCSV(sinkRaw), nil
}

func parseProtocolInfoCSV(csv string) []upnp.ProtocolInfo {
	var out []upnp.ProtocolInfo
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		pi, ok := upnp.ParseProtocolInfo(tok)
		if !ok {
			slog.Warn("connectionmanager: skipping malformed protocol info token", "token", tok)
			continue
		}
		out = append(out, pi)
	}
	return out
}

// PrepareForConnection negotiates a new connection for protocolInfo with
// the given peer connection manager and direction.
func (c *Client) PrepareForConnection(ctx context.Context, protocolInfo upnp.ProtocolInfo, peerConnectionManager string, peerConnectionID int, direction Direction) (*PrepareResult, error) {
	result, err := c.Invoke(ctx, "PrepareForConnection", []soap.Arg{
		{Name: "RemoteProtocolInfo", Value: protocolInfo.String()},
		{Name: "PeerConnectionManager", Value: peerConnectionManager},
		{Name: "PeerConnectionID", Value: strconv.Itoa(peerConnectionID)},
		{Name: "Direction", Value: string(direction)},
	})
	if err != nil {
		return nil, err
	}
	connID, _ := result.Get("ConnectionID")
	avID, _ := result.Get("AVTransportID")
	rcsID, _ := result.Get("RcsID")
	connIDN, _ := strconv.Atoi(connID)
	avIDN, _ := strconv.Atoi(avID)
	rcsIDN, _ := strconv.Atoi(rcsID)
	return &PrepareResult{ConnectionID: connIDN, AVTransportID: avIDN, RcsID: rcsIDN}, nil
}

// ConnectionComplete tears down a connection previously negotiated with
// PrepareForConnection.
func (c *Client) ConnectionComplete(ctx context.Context, connectionID int) error {
	_, err := c.Invoke(ctx, "ConnectionComplete", []soap.Arg{
		{Name: "ConnectionID", Value: strconv.Itoa(connectionID)},
	})
	return err
}

// GetCurrentConnectionIDs lists the device's active connection ids.
func (c *Client) GetCurrentConnectionIDs(ctx context.Context) ([]int, error) {
	result, err := c.Invoke(ctx, "GetCurrentConnectionIDs", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := result.Get("ConnectionIDs")
	var ids []int
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil {
			ids = append(ids, n)
		}
	}
	return ids, nil
}

// GetCurrentConnectionInfo returns the full connection descriptor for id.
func (c *Client) GetCurrentConnectionInfo(ctx context.Context, id int) (*ConnectionInfo, error) {
	result, err := c.Invoke(ctx, "GetCurrentConnectionInfo", []soap.Arg{
		{Name: "ConnectionID", Value: strconv.Itoa(id)},
	})
	if err != nil {
		return nil, err
	}

	rcsID, _ := result.Get("RcsID")
	avID, _ := result.Get("AVTransportID")
	protocolInfoRaw, _ := result.Get("ProtocolInfo")
	peerCM, _ := result.Get("PeerConnectionManager")
	peerID, _ := result.Get("PeerConnectionID")
	direction, _ := result.Get("Direction")
	status, _ := result.Get("Status")

	rcsIDN, _ := strconv.Atoi(rcsID)
	avIDN, _ := strconv.Atoi(avID)
	peerIDN, _ := strconv.Atoi(peerID)
	protocolInfo, _ := upnp.ParseProtocolInfo(protocolInfoRaw)

	return &ConnectionInfo{
		RcsID:                 rcsIDN,
		AVTransportID:         avIDN,
		ProtocolInfo:          protocolInfo,
		PeerConnectionManager: peerCM,
		PeerConnectionID:      peerIDN,
		Direction:             Direction(direction),
		Status:                ConnectionStatus(status),
	}, nil
}
