package gena

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"upnpcp/httpclient"
	"upnpcp/upnperrors"
)

// Manager owns the callback server and every active subscription's renewal
// timer, keeping all subscriptions behind a single mutex-guarded table
// rather than one goroutine per subscription.
type Manager struct {
	http   *httpclient.Client
	server *Server

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	sid         string
	eventSubURL string
	callbackURL string
	timeout     time.Duration
	events      chan Event

	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	consecutiveFailures int
}

// maxConsecutiveRenewalFailures is the point at which a subscription is
// torn down locally rather than kept stale indefinitely.
const maxConsecutiveRenewalFailures = 3

// NewManager builds a Manager bound to the given callback server and HTTP
// client.
func NewManager(server *Server, client *httpclient.Client) *Manager {
	return &Manager{
		http:   client,
		server: server,
		subs:   make(map[string]*subscription),
	}
}

// Subscribe issues a GENA SUBSCRIBE against eventSubURL, registers the
// resulting SID with the callback server, and arms a renewal timer at
// three-quarters of the granted timeout. The returned channel
// delivers events for this subscription until Unsubscribe is called.
func (m *Manager) Subscribe(ctx context.Context, eventSubURL, callbackURL string, timeout time.Duration) (sid string, events <-chan Event, err error) {
	result, err := m.http.Subscribe(ctx, eventSubURL, callbackURL, timeout)
	if err != nil {
		return "", nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event, 16)
	sub := &subscription{
		sid:         result.SID,
		eventSubURL: eventSubURL,
		callbackURL: callbackURL,
		timeout:     result.GrantedTimeout,
		events:      ch,
		ctx:         subCtx,
		cancel:      cancel,
	}

	m.mu.Lock()
	m.subs[sub.sid] = sub
	m.mu.Unlock()

	m.server.register(sub.sid, ch)
	m.armRenewal(sub)

	return sub.sid, ch, nil
}

// Unsubscribe cancels the renewal timer, issues GENA UNSUBSCRIBE, and stops
// routing events for sid.
func (m *Manager) Unsubscribe(ctx context.Context, sid string) error {
	m.mu.Lock()
	sub, ok := m.subs[sid]
	if ok {
		delete(m.subs, sid)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	sub.cancel()
	if sub.timer != nil {
		sub.timer.Stop()
	}
	m.server.unregister(sid)
	close(sub.events)

	return m.http.Unsubscribe(ctx, sub.eventSubURL, sid)
}

// armRenewal schedules the subscription's next RENEW at timeout*3/4 (spec
// §4.2 "granted_timeout × ¾"). A plain renewal failure is logged and
// retried on the next cycle; a 412 response gets a fresh SUBSCRIBE instead
//.
func (m *Manager) armRenewal(sub *subscription) {
	if sub.timeout <= 0 {
		return // Second-infinite: no renewal needed.
	}
	delay := sub.timeout * 3 / 4
	sub.timer = time.AfterFunc(delay, func() {
		m.renew(sub)
	})
}

func (m *Manager) renew(sub *subscription) {
	if sub.ctx.Err() != nil {
		return
	}

	result, err := m.http.Renew(sub.ctx, sub.eventSubURL, sub.sid, sub.timeout)
	if err != nil {
		var httpErr *upnperrors.HTTPError
		if ok := asHTTPError(err, &httpErr); ok && httpErr.Status == http.StatusPreconditionFailed {
			// Spec §9/S6: a 412 on RENEW means the publisher no longer
			// recognizes this SID; re-run SUBSCRIBE from scratch rather than
			// keep retrying the dead one.
			slog.Warn("gena: renewal got 412, re-subscribing from scratch", "sid", sub.sid)
			m.resubscribe(sub)
			return
		}

		sub.consecutiveFailures++
		if sub.consecutiveFailures >= maxConsecutiveRenewalFailures {
			slog.Warn("gena: renewal failed repeatedly, dropping subscription", "sid", sub.sid, "failures", sub.consecutiveFailures, "err", err)
			m.drop(sub.sid)
			return
		}
		slog.Warn("gena: renewal failed, retrying next cycle", "sid", sub.sid, "failures", sub.consecutiveFailures, "err", err)
		m.armRenewal(sub)
		return
	}

	m.mu.Lock()
	sub.timeout = result.GrantedTimeout
	sub.consecutiveFailures = 0
	m.mu.Unlock()

	m.armRenewal(sub)
}

// asHTTPError reports whether err is (or wraps) an *upnperrors.HTTPError,
// writing it to out on success.
func asHTTPError(err error, out **upnperrors.HTTPError) bool {
	return errors.As(err, out)
}

// resubscribe replaces sub's SID with a freshly issued one, keeping the
// same caller-visible event channel.
func (m *Manager) resubscribe(sub *subscription) {
	result, err := m.http.Subscribe(sub.ctx, sub.eventSubURL, sub.callbackURL, sub.timeout)
	if err != nil {
		sub.consecutiveFailures++
		if sub.consecutiveFailures >= maxConsecutiveRenewalFailures {
			slog.Warn("gena: re-subscribe failed repeatedly, dropping subscription", "sid", sub.sid, "err", err)
			m.drop(sub.sid)
			return
		}
		slog.Warn("gena: re-subscribe failed, retrying next cycle", "sid", sub.sid, "err", err)
		m.armRenewal(sub)
		return
	}

	m.mu.Lock()
	oldSID := sub.sid
	delete(m.subs, oldSID)
	sub.sid = result.SID
	sub.timeout = result.GrantedTimeout
	sub.consecutiveFailures = 0
	m.subs[sub.sid] = sub
	m.mu.Unlock()

	m.server.unregister(oldSID)
	m.server.register(sub.sid, sub.events)
	m.armRenewal(sub)
}

// drop tears a subscription down locally without attempting a network
// UNSUBSCRIBE, used when the publisher has stopped responding to RENEW.
func (m *Manager) drop(sid string) {
	m.mu.Lock()
	sub, ok := m.subs[sid]
	if ok {
		delete(m.subs, sid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	sub.cancel()
	m.server.unregister(sid)
	close(sub.events)
}
