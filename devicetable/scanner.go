package devicetable

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"upnpcp/httpclient"
	"upnpcp/ssdp"
	"upnpcp/upnp"
	"upnpcp/xmlutil"
)

// Kind is a device-level discovery target, distinct from upnp.ServiceKind.
type Kind int

const (
	MediaServer Kind = iota
	MediaRenderer
)

func (k Kind) searchTarget() string {
	switch k {
	case MediaServer:
		return "urn:schemas-upnp-org:device:MediaServer:1"
	case MediaRenderer:
		return "urn:schemas-upnp-org:device:MediaRenderer:1"
	default:
		return ""
	}
}

// satisfies reports whether d exposes the services required of this device
// kind.
func (k Kind) satisfies(d *upnp.Device) bool {
	switch k {
	case MediaServer:
		return d.HasService(upnp.ContentDirectory)
	case MediaRenderer:
		return d.HasService(upnp.RenderingControl) && d.HasService(upnp.ConnectionManager)
	default:
		return false
	}
}

const ttlSweepInterval = 60 * time.Second

// Scanner drives Table from SSDP alive/byebye events, fetching and parsing
// device descriptions as new UDNs appear.
type Scanner struct {
	table  Table
	ssdp   *ssdp.Client
	http   *httpclient.Client
	kinds  []Kind

	mu      sync.Mutex
	pending map[string]bool // UDN currently being fetched
}

// NewScanner builds a Scanner over an already-started SSDP client. kinds
// restricts which device types Refresh searches for and which described
// devices are added to the table; every alive notice with a UDN is
// followed up with a description fetch.
func NewScanner(ssdpClient *ssdp.Client, httpClient *httpclient.Client, kinds []Kind) *Scanner {
	return &Scanner{
		ssdp:    ssdpClient,
		http:    httpClient,
		kinds:   kinds,
		table:   NewTable(nil),
		pending: make(map[string]bool),
	}
}

// WithEvents rebuilds the scanner's table so Discovered/Disappeared publish
// to events. Call before Run.
func (s *Scanner) WithEvents(events chan<- Event) *Scanner {
	s.table = NewTable(events)
	return s
}

// Table returns the scanner's live device table.
func (s *Scanner) Table() Table { return s.table }

// Run consumes SSDP events and drives TTL sweeps until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(ttlSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case info, ok := <-s.ssdp.Events:
			if !ok {
				return
			}
			s.handleSSDPEvent(ctx, info)

		case now := <-ticker.C:
			s.table.sweepExpired(now)
		}
	}
}

// Refresh emits an SSDP search with a 5 s MX for every configured device
// kind.
func (s *Scanner) Refresh() error {
	for _, k := range s.kinds {
		if err := s.ssdp.Search(k.searchTarget(), 5); err != nil {
			return fmt.Errorf("ssdp search %s: %w", k.searchTarget(), err)
		}
	}
	return nil
}

func (s *Scanner) handleSSDPEvent(ctx context.Context, info ssdp.Info) {
	if info.UDN == "" {
		return
	}

	if info.Kind == ssdp.ByeBye {
		s.table.remove(info.UDN)
		return
	}

	ttl := time.Duration(info.ExpirationSeconds) * time.Second
	if ttl <= 0 {
		ttl = ttlSweepInterval
	}

	currentLocation, known := s.table.locationOf(info.UDN)
	if known {
		if currentLocation == info.Location {
			s.table.extendTTL(info.UDN, ttl)
			return
		}
		// Location changed: re-describe and swap, never re-emitting Discovered.
		s.fetchAndApply(ctx, info.UDN, info.Location, ttl, s.table.swap)
		return
	}

	s.fetchAndApply(ctx, info.UDN, info.Location, ttl, s.table.applyNew)
}

// fetchAndApply fetches and parses a device description in the background
// and applies it with apply (either applyNew or swap), deduplicating
// concurrent fetches for the same UDN.
func (s *Scanner) fetchAndApply(ctx context.Context, udn, location string, ttl time.Duration, apply func(upnp.Device, time.Duration)) {
	s.mu.Lock()
	if s.pending[udn] {
		s.mu.Unlock()
		return
	}
	s.pending[udn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending, udn)
			s.mu.Unlock()
		}()

		device, err := s.describe(ctx, location)
		if err != nil {
			// Description-fetch failures during discovery silently discard
			// the device.
			slog.Warn("devicetable: description fetch failed", "udn", udn, "location", location, "err", err)
			return
		}
		if device.UDN != udn {
			slog.Warn("devicetable: description UDN mismatch", "expected", udn, "got", device.UDN, "location", location)
			return
		}
		if !s.satisfiesAnyConfiguredKind(device) {
			return
		}

		apply(*device, ttl)
	}()
}

func (s *Scanner) satisfiesAnyConfiguredKind(d *upnp.Device) bool {
	if len(s.kinds) == 0 {
		return true
	}
	for _, k := range s.kinds {
		if k.satisfies(d) {
			return true
		}
	}
	return false
}

// describe fetches and parses a device's description document at
// locationURL, resolving each service's relative URLs.
func (s *Scanner) describe(ctx context.Context, locationURL string) (*upnp.Device, error) {
	status, body, err := s.http.Get(ctx, locationURL)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("device description fetch: http status %d", status)
	}

	desc, err := xmlutil.ParseDeviceDescription(body)
	if err != nil {
		return nil, err
	}

	loc, err := url.Parse(locationURL)
	if err != nil {
		return nil, fmt.Errorf("parse location url: %w", err)
	}
	base := loc
	if desc.URLBase != "" {
		base, err = url.Parse(desc.URLBase)
		if err != nil {
			return nil, fmt.Errorf("parse URLBase: %w", err)
		}
	}

	device := &upnp.Device{
		UDN:             desc.UDN,
		DeviceType:      desc.DeviceType,
		FriendlyName:    desc.FriendlyName,
		BaseURL:         base.String(),
		PresentationURL: desc.PresentationURL,
		Services:        make(map[upnp.ServiceKind]upnp.Service),
	}

	for _, svc := range desc.Services {
		kind, version, ok := upnp.ParseServiceType(svc.ServiceType)
		if !ok {
			continue
		}
		control, eventSub, scpd, err := xmlutil.ResolveServiceURLs(base, svc)
		if err != nil {
			slog.Warn("devicetable: skipping service with unresolvable URLs", "udn", desc.UDN, "serviceType", svc.ServiceType, "err", err)
			continue
		}
		device.Services[kind] = upnp.Service{
			Kind:        kind,
			Version:     version,
			ServiceID:   svc.ServiceID,
			ControlURL:  control.String(),
			EventSubURL: eventSub.String(),
			SCPDURL:     scpd.String(),
		}
	}

	return device, nil
}
