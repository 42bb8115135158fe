// Package renderingcontrol implements the RenderingControl:1 typed service
// client: volume and mute control with SCPD-range clamping.
package renderingcontrol

import (
	"context"
	"strconv"

	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/service"
	"upnpcp/soap"
	"upnpcp/upnp"
)

// DefaultChannel is the channel argument used when the caller doesn't name
// one.
const DefaultChannel = "Master"

// Client is the RenderingControl:1 typed service client.
type Client struct {
	*service.Base
}

// New builds an unbound RenderingControl client.
func New(httpClient *httpclient.Client, genaManager *gena.Manager) *Client {
	return &Client{Base: service.NewBase(upnp.RenderingControl, httpClient, genaManager)}
}

// GetVolume returns the current volume for channel on instanceID.
func (c *Client) GetVolume(ctx context.Context, instanceID int, channel string) (int, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	result, err := c.Invoke(ctx, "GetVolume", []soap.Arg{
		{Name: "InstanceID", Value: strconv.Itoa(instanceID)},
		{Name: "Channel", Value: channel},
	})
	if err != nil {
		return 0, err
	}
	raw, _ := result.Get("CurrentVolume")
	v, _ := strconv.Atoi(raw)
	return v, nil
}

// SetVolume sets the volume for channel on instanceID. desired is clamped
// to the declared Volume state-variable range from SCPD before being sent
// on the wire.
func (c *Client) SetVolume(ctx context.Context, instanceID int, channel string, desired int) error {
	if channel == "" {
		channel = DefaultChannel
	}

	clamped := desired
	if r, ok := c.Variable("Volume"); ok && r.Range.Present {
		if float64(clamped) < r.Range.Min {
			clamped = int(r.Range.Min)
		}
		if float64(clamped) > r.Range.Max {
			clamped = int(r.Range.Max)
		}
	}

	_, err := c.Invoke(ctx, "SetVolume", []soap.Arg{
		{Name: "InstanceID", Value: strconv.Itoa(instanceID)},
		{Name: "Channel", Value: channel},
		{Name: "DesiredVolume", Value: strconv.Itoa(clamped)},
	})
	return err
}

// GetMute returns the current mute state for channel on instanceID.
func (c *Client) GetMute(ctx context.Context, instanceID int, channel string) (bool, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	result, err := c.Invoke(ctx, "GetMute", []soap.Arg{
		{Name: "InstanceID", Value: strconv.Itoa(instanceID)},
		{Name: "Channel", Value: channel},
	})
	if err != nil {
		return false, err
	}
	raw, _ := result.Get("CurrentMute")
	return raw == "1" || raw == "true", nil
}

// SetMute sets the mute state for channel on instanceID.
func (c *Client) SetMute(ctx context.Context, instanceID int, channel string, desired bool) error {
	if channel == "" {
		channel = DefaultChannel
	}
	value := "0"
	if desired {
		value = "1"
	}
	_, err := c.Invoke(ctx, "SetMute", []soap.Arg{
		{Name: "InstanceID", Value: strconv.Itoa(instanceID)},
		{Name: "Channel", Value: channel},
		{Name: "DesiredMute", Value: value},
	})
	return err
}
