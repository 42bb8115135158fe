// Package controlpoint is the top-level UPnP/AV engine: it wires SSDP
// discovery, the GENA callback server, and the device scanner together and
// exposes bound MediaServer/MediaRenderer aggregates to the caller. One
// Engine owns one I/O context for its whole lifetime.
package controlpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"upnpcp/devicetable"
	"upnpcp/gena"
	"upnpcp/httpclient"
	"upnpcp/mediarenderer"
	"upnpcp/mediaserver"
	"upnpcp/ssdp"
	"upnpcp/upnp"
)

// Config are the construction parameters an Engine needs beyond whatever
// upnpcp/config the caller loaded.
type Config struct {
	BindInterface     *net.Interface
	GENACallbackAddr  string // host:port the callback server binds
	GENACallbackHost  string // externally reachable host:port advertised in CALLBACK
	GENACallbackPath  string
	HTTPTimeout       time.Duration
	Kinds             []devicetable.Kind
}

// Engine is one running UPnP/AV control point instance.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc

	http        *httpclient.Client
	ssdp        *ssdp.Client
	genaServer  *gena.Server
	genaManager *gena.Manager
	scanner     *devicetable.Scanner

	callbackHost string
	callbackPath string

	Events chan devicetable.Event
}

// Start brings up the SSDP listener, the GENA callback server, and the
// device scanner, and begins the scanner's event loop in the background.
func Start(ctx context.Context, cfg Config) (*Engine, error) {
	engineCtx, cancel := context.WithCancel(ctx)

	httpClient := httpclient.New(cfg.HTTPTimeout)

	ssdpClient, err := ssdp.Start(engineCtx, cfg.BindInterface)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start ssdp: %w", err)
	}

	genaServer := gena.NewServer(cfg.GENACallbackAddr, cfg.GENACallbackPath)
	ready := make(chan struct{})
	go func() {
		if err := genaServer.Start(ready); err != nil {
			slog.Error("controlpoint: gena callback server exited", "err", err)
		}
	}()
	<-ready

	genaManager := gena.NewManager(genaServer, httpClient)

	events := make(chan devicetable.Event, 32)
	scanner := devicetable.NewScanner(ssdpClient, httpClient, cfg.Kinds).WithEvents(events)

	e := &Engine{
		ctx:          engineCtx,
		cancel:       cancel,
		http:         httpClient,
		ssdp:         ssdpClient,
		genaServer:   genaServer,
		genaManager:  genaManager,
		scanner:      scanner,
		callbackHost: cfg.GENACallbackHost,
		callbackPath: cfg.GENACallbackPath,
		Events:       events,
	}

	go scanner.Run(engineCtx)

	return e, nil
}

// Stop cancels all background work and shuts the GENA callback server
// down.
func (e *Engine) Stop() {
	e.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.genaServer.Stop(shutdownCtx); err != nil {
		slog.Warn("controlpoint: gena callback server shutdown error", "err", err)
	}
	e.ssdp.Close()
}

// Refresh emits an SSDP search for the engine's configured device kinds.
func (e *Engine) Refresh() error {
	return e.scanner.Refresh()
}

// CallbackURL is the URL this engine's GENA server advertises in
// SUBSCRIBE's CALLBACK header.
func (e *Engine) CallbackURL() string {
	return "http://" + e.callbackHost + e.callbackPath
}

// Devices returns a snapshot of every currently live device.
func (e *Engine) Devices() []upnp.Device {
	return e.scanner.Table().Snapshot()
}

// BindMediaServer binds all services of the device named by udn as a
// MediaServer aggregate.
func (e *Engine) BindMediaServer(ctx context.Context, udn string) (*mediaserver.MediaServer, error) {
	device, ok := e.scanner.Table().Get(udn)
	if !ok {
		return nil, fmt.Errorf("device %s not found", udn)
	}
	return mediaserver.Bind(ctx, &device, e.http, e.genaManager)
}

// BindMediaRenderer binds all services of the device named by udn as a
// MediaRenderer aggregate.
func (e *Engine) BindMediaRenderer(ctx context.Context, udn string) (*mediarenderer.MediaRenderer, error) {
	device, ok := e.scanner.Table().Get(udn)
	if !ok {
		return nil, fmt.Errorf("device %s not found", udn)
	}
	return mediarenderer.Bind(ctx, &device, e.http, e.genaManager)
}
