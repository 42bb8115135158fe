// Package service implements the reusable service-client base shared by
// AVTransport, RenderingControl, ConnectionManager, and ContentDirectory:
// binding to a device's SCPD, subscribe/renew/unsubscribe, action dispatch,
// and LastChange decoding.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/soap"
	"upnpcp/upnp"
	"upnpcp/upnperrors"
	"upnpcp/xmlutil"
)

// DefaultSubscribeTimeout is the subscribe timeout used when a caller
// doesn't request a specific one.
const DefaultSubscribeTimeout = 1801 * time.Second

// Variable is one changed state variable reported in a LastChange event.
type Variable struct {
	Name  string
	Value string
}

// LastChangeEvent is the decoded, per-instance result of a NOTIFY whose
// LastChange body has been unpacked.
type LastChangeEvent struct {
	InstanceID int
	Variables  []Variable
}

// OnStateVariableEventFunc is the typed-client hook run before a
// LastChangeEvent is republished, letting a subclass like AVTransport cache
// TransportState locally.
type OnStateVariableEventFunc func(LastChangeEvent)

// Base is embedded by every typed service client. It owns exactly the
// concrete Service descriptor it was bound to, never a reference back to
// the owning Device.
type Base struct {
	Kind upnp.ServiceKind
	Svc  upnp.Service

	http *httpclient.Client
	gena *gena.Manager
	scpd *xmlutil.SCPD

	OnStateVariableEvent OnStateVariableEventFunc

	mu        sync.Mutex
	sid       string
	events    <-chan gena.Event
	listeners []chan LastChangeEvent
}

// NewBase builds an unbound Base for the given kind, wired to shared HTTP
// and GENA infrastructure. Call Bind before using it.
func NewBase(kind upnp.ServiceKind, httpClient *httpclient.Client, genaManager *gena.Manager) *Base {
	return &Base{Kind: kind, http: httpClient, gena: genaManager}
}

// Bind verifies the device implements this service, fetches and parses its
// SCPD, and records the supported-action set.
func (b *Base) Bind(ctx context.Context, device *upnp.Device) error {
	svc, ok := device.Services[b.Kind]
	if !ok {
		return &upnperrors.InvalidStateError{Reason: fmt.Sprintf("device %s does not implement %s", device.UDN, b.Kind)}
	}
	b.Svc = svc

	status, body, err := b.http.Get(ctx, svc.SCPDURL)
	if err != nil {
		return err
	}
	if status != 200 {
		return &upnperrors.HTTPError{Status: status, Reason: "fetching SCPD"}
	}
	scpd, err := xmlutil.ParseSCPD(body)
	if err != nil {
		return err
	}
	b.scpd = scpd
	return nil
}

// SupportsAction reports whether name is in the bound SCPD's action set
//.
func (b *Base) SupportsAction(name string) bool {
	if b.scpd == nil {
		return false
	}
	return b.scpd.HasAction(name)
}

// Variable looks up a bound SCPD state variable's declared range.
func (b *Base) Variable(name string) (xmlutil.StateVariable, bool) {
	if b.scpd == nil {
		return xmlutil.StateVariable{}, false
	}
	return b.scpd.Variable(name)
}

// Subscribe issues GENA SUBSCRIBE for this service's event subscription
// URL and begins fanning decoded LastChange events out to Listen()
// channels. timeout of 0 uses DefaultSubscribeTimeout.
func (b *Base) Subscribe(ctx context.Context, callbackURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultSubscribeTimeout
	}
	sid, events, err := b.gena.Subscribe(ctx, b.Svc.EventSubURL, callbackURL, timeout)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.sid = sid
	b.events = events
	b.mu.Unlock()

	go b.pump(events)
	return nil
}

// Unsubscribe tears down the active subscription, if any.
func (b *Base) Unsubscribe(ctx context.Context) error {
	b.mu.Lock()
	sid := b.sid
	b.sid = ""
	b.mu.Unlock()
	if sid == "" {
		return nil
	}
	return b.gena.Unsubscribe(ctx, sid)
}

// Listen registers a channel that receives every LastChangeEvent this
// service reports from here on.
func (b *Base) Listen(ch chan LastChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, ch)
}

func (b *Base) pump(events <-chan gena.Event) {
	for ev := range events {
		for _, prop := range ev.Properties {
			if prop.Name != "LastChange" {
				continue
			}
			instances, err := xmlutil.ParseLastChange([]byte(prop.Value))
			if err != nil {
				slog.Warn("service: malformed LastChange body", "kind", b.Kind, "err", err)
				continue
			}
			for _, inst := range instances {
				lce := LastChangeEvent{InstanceID: inst.InstanceID}
				for _, v := range inst.Variables {
					lce.Variables = append(lce.Variables, Variable{Name: v.Name, Value: v.Value})
				}
				if b.OnStateVariableEvent != nil {
					b.OnStateVariableEvent(lce)
				}
				b.fanOut(lce)
			}
		}
	}
}

func (b *Base) fanOut(lce LastChangeEvent) {
	b.mu.Lock()
	listeners := append([]chan LastChangeEvent(nil), b.listeners...)
	b.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- lce:
		default:
			slog.Warn("service: LastChangeEvent dropped, listener not keeping up", "kind", b.Kind)
		}
	}
}

// Invoke builds and dispatches an action against this service's control
// URL, rejecting anything not in the bound SCPD's action set.
func (b *Base) Invoke(ctx context.Context, actionName string, args []soap.Arg) (*soap.ActionResult, error) {
	if b.scpd != nil && !b.scpd.HasAction(actionName) {
		return nil, &upnperrors.InvalidArgumentError{Reason: fmt.Sprintf("action %q not supported by %s", actionName, b.Kind)}
	}

	result, err := soap.Invoke(ctx, b.http, soap.Action{
		ServiceType: upnp.ServiceType(b.Kind, b.Svc.Version),
		Name:        actionName,
		ControlURL:  b.Svc.ControlURL,
		Args:        args,
	})
	if err != nil {
		return nil, err
	}
	if result.Fault != nil {
		return result, &upnperrors.SoapFault{Code: result.Fault.Code, Description: result.Fault.Description}
	}
	return result, nil
}
