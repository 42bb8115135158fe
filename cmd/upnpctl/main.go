// Command upnpctl brings up a control point engine, discovers MediaServer
// and MediaRenderer devices on the local network, and prints them — a thin
// entry point over upnpcp/controlpoint wiring the engine together (a full
// CLI surface is out of scope; this is only enough to run the engine).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"upnpcp/config"
	"upnpcp/controlpoint"
	"upnpcp/devicetable"
)

func main() {
	args := config.ParseCommandLineArgs()

	cfg, err := config.LoadConfig(args.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cfg.ApplyCommandLineArgs(args)

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logFile, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// When stdout is an interactive terminal, tee log output there too so
	// `upnpctl` run by hand shows activity without tailing the log file.
	logWriter := io.Writer(logFile)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		logWriter = io.MultiWriter(logFile, os.Stdout)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bindIface *net.Interface
	if cfg.SSDP.BindInterface != "" {
		iface, err := net.InterfaceByName(cfg.SSDP.BindInterface)
		if err != nil {
			fmt.Fprintln(os.Stderr, "resolve ssdp bind interface:", err)
			os.Exit(1)
		}
		bindIface = iface
	}

	var kinds []devicetable.Kind
	if cfg.Discovery.MediaServers {
		kinds = append(kinds, devicetable.MediaServer)
	}
	if cfg.Discovery.MediaRenderers {
		kinds = append(kinds, devicetable.MediaRenderer)
	}

	httpTimeout, err := time.ParseDuration(cfg.HTTP.ClientTimeout)
	if err != nil {
		httpTimeout = 30 * time.Second
	}

	callbackHost := cfg.GENA.CallbackHost
	if callbackHost == "" {
		callbackHost = "127.0.0.1" + cfg.GENA.CallbackBindAddr
	}

	engine, err := controlpoint.Start(ctx, controlpoint.Config{
		BindInterface:    bindIface,
		GENACallbackAddr: cfg.GENA.CallbackBindAddr,
		GENACallbackHost: callbackHost,
		GENACallbackPath: cfg.GENA.CallbackPath,
		HTTPTimeout:      httpTimeout,
		Kinds:            kinds,
	})
	if err != nil {
		slog.Error("start control point", "err", err)
		os.Exit(1)
	}
	defer engine.Stop()

	if err := engine.Refresh(); err != nil {
		slog.Warn("initial discovery refresh failed", "err", err)
	}

	go func() {
		for ev := range engine.Events {
			switch ev.Type {
			case devicetable.Discovered:
				fmt.Printf("discovered: %s (%s)\n", ev.Device.FriendlyName, ev.Device.UDN)
			case devicetable.Disappeared:
				fmt.Printf("disappeared: %s\n", ev.Device.UDN)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}
