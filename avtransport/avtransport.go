// Package avtransport implements the AVTransport:1 typed service client:
// playback control, transport/position queries, and LastChange-derived
// transport-state tracking.
package avtransport

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/service"
	"upnpcp/soap"
	"upnpcp/upnp"
)

// TransportState is the enumerated GetTransportInfo/LastChange state value.
type TransportState string

const (
	Stopped         TransportState = "STOPPED"
	Playing         TransportState = "PLAYING"
	Transitioning   TransportState = "TRANSITIONING"
	PausedPlayback  TransportState = "PAUSED_PLAYBACK"
	PausedRecording TransportState = "PAUSED_RECORDING"
	Recording       TransportState = "RECORDING"
	NoMediaPresent  TransportState = "NO_MEDIA_PRESENT"
)

// TransportStatus is GetTransportInfo's status field.
type TransportStatus string

const (
	StatusOK            TransportStatus = "OK"
	StatusErrorOccurred TransportStatus = "ERROR_OCCURRED"
)

// SeekUnit is the fixed enum Seek's Unit argument is drawn from.
type SeekUnit string

const (
	SeekTrackNr      SeekUnit = "TRACK_NR"
	SeekAbsTime      SeekUnit = "ABS_TIME"
	SeekRelTime      SeekUnit = "REL_TIME"
	SeekAbsCount     SeekUnit = "ABS_COUNT"
	SeekRelCount     SeekUnit = "REL_COUNT"
	SeekChannelFreq  SeekUnit = "CHANNEL_FREQ"
	SeekTapeIndex    SeekUnit = "TAPE-INDEX"
	SeekRelTapeIndex SeekUnit = "REL_TAPE-INDEX"
	SeekFrame        SeekUnit = "FRAME"
	SeekRelFrame     SeekUnit = "REL_FRAME"
)

// TransportInfo is GetTransportInfo's result.
type TransportInfo struct {
	State  TransportState
	Status TransportStatus
	Speed  string
}

// PositionInfo is GetPositionInfo's result.
type PositionInfo struct {
	Track         int
	TrackDuration string
	TrackMetaData string
	TrackURI      string
	RelTime       string
	AbsTime       string
	RelCount      int
	AbsCount      int
}

// MediaInfo is GetMediaInfo's result.
type MediaInfo struct {
	NrTracks           int
	MediaDuration      string
	CurrentURI         string
	CurrentURIMetaData string
	NextURI            string
	NextURIMetaData    string
	PlayMedium         string
}

// Client is the AVTransport:1 typed service client.
type Client struct {
	*service.Base

	mu    sync.RWMutex
	state TransportState
}

// New builds an unbound AVTransport client.
func New(httpClient *httpclient.Client, genaManager *gena.Manager) *Client {
	c := &Client{Base: service.NewBase(upnp.AVTransport, httpClient, genaManager)}
	c.Base.OnStateVariableEvent = c.onStateVariableEvent
	return c
}

// onStateVariableEvent caches TransportState locally before the generic
// LastChangeEvent fans out.
func (c *Client) onStateVariableEvent(ev service.LastChangeEvent) {
	for _, v := range ev.Variables {
		if v.Name == "TransportState" {
			c.mu.Lock()
			c.state = TransportState(v.Value)
			c.mu.Unlock()
		}
	}
}

// CachedState returns the most recently observed TransportState from
// LastChange events, without an action round trip.
func (c *Client) CachedState() TransportState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func instanceArg(instanceID int) soap.Arg {
	return soap.Arg{Name: "InstanceID", Value: strconv.Itoa(instanceID)}
}

// SetAVTransportURI sets the current playback URI and its DIDL-Lite
// metadata.
func (c *Client) SetAVTransportURI(ctx context.Context, instanceID int, uri, metaData string) error {
	_, err := c.Invoke(ctx, "SetAVTransportURI", []soap.Arg{
		instanceArg(instanceID),
		{Name: "CurrentURI", Value: uri},
		{Name: "CurrentURIMetaData", Value: metaData},
	})
	return err
}

// SetNextAVTransportURI sets the gapless-playback next URI.
func (c *Client) SetNextAVTransportURI(ctx context.Context, instanceID int, uri, metaData string) error {
	_, err := c.Invoke(ctx, "SetNextAVTransportURI", []soap.Arg{
		instanceArg(instanceID),
		{Name: "NextURI", Value: uri},
		{Name: "NextURIMetaData", Value: metaData},
	})
	return err
}

// Play starts playback at the given speed (commonly "1").
func (c *Client) Play(ctx context.Context, instanceID int, speed string) error {
	_, err := c.Invoke(ctx, "Play", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Speed", Value: speed},
	})
	return err
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, instanceID int) error {
	_, err := c.Invoke(ctx, "Pause", []soap.Arg{instanceArg(instanceID)})
	return err
}

// Stop stops playback.
func (c *Client) Stop(ctx context.Context, instanceID int) error {
	_, err := c.Invoke(ctx, "Stop", []soap.Arg{instanceArg(instanceID)})
	return err
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context, instanceID int) error {
	_, err := c.Invoke(ctx, "Next", []soap.Arg{instanceArg(instanceID)})
	return err
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context, instanceID int) error {
	_, err := c.Invoke(ctx, "Previous", []soap.Arg{instanceArg(instanceID)})
	return err
}

// Seek seeks within the current track per unit/target.
func (c *Client) Seek(ctx context.Context, instanceID int, unit SeekUnit, target string) error {
	_, err := c.Invoke(ctx, "Seek", []soap.Arg{
		instanceArg(instanceID),
		{Name: "Unit", Value: string(unit)},
		{Name: "Target", Value: target},
	})
	return err
}

// GetPositionInfo returns the current playback position.
func (c *Client) GetPositionInfo(ctx context.Context, instanceID int) (*PositionInfo, error) {
	result, err := c.Invoke(ctx, "GetPositionInfo", []soap.Arg{instanceArg(instanceID)})
	if err != nil {
		return nil, err
	}
	track, _ := result.Get("Track")
	relCount, _ := result.Get("RelCount")
	absCount, _ := result.Get("AbsCount")
	trackURI, _ := result.Get("TrackURI")
	trackDuration, _ := result.Get("TrackDuration")
	trackMeta, _ := result.Get("TrackMetaData")
	relTime, _ := result.Get("RelTime")
	absTime, _ := result.Get("AbsTime")

	trackN, _ := strconv.Atoi(track)
	relCountN, _ := strconv.Atoi(relCount)
	absCountN, _ := strconv.Atoi(absCount)

	return &PositionInfo{
		Track:         trackN,
		TrackDuration: trackDuration,
		TrackMetaData: trackMeta,
		TrackURI:      trackURI,
		RelTime:       relTime,
		AbsTime:       absTime,
		RelCount:      relCountN,
		AbsCount:      absCountN,
	}, nil
}

// GetMediaInfo returns the current media item's metadata.
func (c *Client) GetMediaInfo(ctx context.Context, instanceID int) (*MediaInfo, error) {
	result, err := c.Invoke(ctx, "GetMediaInfo", []soap.Arg{instanceArg(instanceID)})
	if err != nil {
		return nil, err
	}
	nrTracks, _ := result.Get("NrTracks")
	nrTracksN, _ := strconv.Atoi(nrTracks)
	duration, _ := result.Get("MediaDuration")
	curURI, _ := result.Get("CurrentURI")
	curMeta, _ := result.Get("CurrentURIMetaData")
	nextURI, _ := result.Get("NextURI")
	nextMeta, _ := result.Get("NextURIMetaData")
	medium, _ := result.Get("PlayMedium")

	return &MediaInfo{
		NrTracks:           nrTracksN,
		MediaDuration:      duration,
		CurrentURI:         curURI,
		CurrentURIMetaData: curMeta,
		NextURI:            nextURI,
		NextURIMetaData:    nextMeta,
		PlayMedium:         medium,
	}, nil
}

// GetTransportInfo returns the current transport state/status/speed.
func (c *Client) GetTransportInfo(ctx context.Context, instanceID int) (*TransportInfo, error) {
	result, err := c.Invoke(ctx, "GetTransportInfo", []soap.Arg{instanceArg(instanceID)})
	if err != nil {
		return nil, err
	}
	state, _ := result.Get("CurrentTransportState")
	status, _ := result.Get("CurrentTransportStatus")
	speed, _ := result.Get("CurrentSpeed")
	return &TransportInfo{State: TransportState(state), Status: TransportStatus(status), Speed: speed}, nil
}

// TransportAction is one member of the GetCurrentTransportActions enum.
type TransportAction string

const (
	ActionPlay     TransportAction = "Play"
	ActionStop     TransportAction = "Stop"
	ActionPause    TransportAction = "Pause"
	ActionSeek     TransportAction = "Seek"
	ActionNext     TransportAction = "Next"
	ActionPrevious TransportAction = "Previous"
	ActionRecord   TransportAction = "Record"
)

var knownTransportActions = map[string]TransportAction{
	"Play":     ActionPlay,
	"Stop":     ActionStop,
	"Pause":    ActionPause,
	"Seek":     ActionSeek,
	"Next":     ActionNext,
	"Previous": ActionPrevious,
	"Record":   ActionRecord,
}

// CurrentTransportActions is GetCurrentTransportActions's result: the
// recognized actions as a typed enum, plus the unparsed wire value for
// callers that want it (diagnostics, logging unknown members themselves).
type CurrentTransportActions struct {
	Raw     string
	Actions []TransportAction
}

// GetCurrentTransportActions returns the set of actions currently
// permitted; tokens that aren't a known TransportAction are logged and
// dropped rather than surfaced to the caller.
func (c *Client) GetCurrentTransportActions(ctx context.Context, instanceID int) (*CurrentTransportActions, error) {
	result, err := c.Invoke(ctx, "GetCurrentTransportActions", []soap.Arg{instanceArg(instanceID)})
	if err != nil {
		return nil, err
	}
	raw, _ := result.Get("Actions")
	out := &CurrentTransportActions{Raw: raw}
	for _, a := range strings.Split(raw, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		action, ok := knownTransportActions[a]
		if !ok {
			slog.Warn("avtransport: unknown transport action", "action", a)
			continue
		}
		out.Actions = append(out.Actions, action)
	}
	return out, nil
}
