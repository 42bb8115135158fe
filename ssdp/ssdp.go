// Package ssdp implements the SSDP multicast client: socket setup, active
// M-SEARCH, and parsing of inbound NOTIFY/search-response messages into
// alive/byebye events.
package ssdp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
)

// Address is the fixed SSDP multicast group and port.
const Address = "239.255.255.250:1900"

// EventKind distinguishes an alive announcement from a bye-bye.
type EventKind int

const (
	Alive EventKind = iota
	ByeBye
)

// Info is the decoded content of one SSDP announcement or search response.
type Info struct {
	Kind             EventKind
	UDN              string
	DeviceType       string // type after "::" in the USN, or the NT/ST header when the USN has none
	Location         string
	ExpirationSeconds int
}

// Client owns the multicast socket and fans out parsed events to Events,
// wrapping the raw connection behind a small method set.
type Client struct {
	conn   *net.UDPConn
	iface  *net.Interface
	Events chan Info

	mu      sync.Mutex
	closed  bool
	localIP net.IP
}

var bufferPool = sync.Pool{
	New: func() any { return make([]byte, 2048) },
}

// Start opens the multicast socket bound to bindInterface (nil for the
// system default) and begins the receive loop in a background goroutine.
// Events are delivered on the returned Client's Events channel until ctx is
// cancelled or Close is called.
func Start(ctx context.Context, bindInterface *net.Interface) (*Client, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", Address)
	if err != nil {
		return nil, fmt.Errorf("resolve ssdp multicast address: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", bindInterface, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("listen ssdp multicast: %w", err)
	}
	conn.SetReadBuffer(4096)

	c := &Client{
		conn:   conn,
		iface:  bindInterface,
		Events: make(chan Info, 32),
	}

	go c.receiveLoop(ctx)

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	return c, nil
}

// Close shuts down the socket and the event channel. Safe to call more than
// once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.conn.Close()
	close(c.Events)
	return err
}

func (c *Client) receiveLoop(ctx context.Context) {
	for {
		buf := bufferPool.Get().([]byte)
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			bufferPool.Put(buf)
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			slog.Warn("ssdp: receive error", "err", err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		bufferPool.Put(buf)

		info, ok := parseMessage(data)
		if !ok {
			slog.Debug("ssdp: dropping malformed or ignored datagram", "bytes", n)
			continue
		}

		select {
		case c.Events <- info:
		case <-ctx.Done():
			return
		default:
			slog.Warn("ssdp: event dropped, receiver not keeping up")
		}
	}
}

// Search emits one non-blocking M-SEARCH for target with the given MX
// (search window, seconds). Responses arrive asynchronously on Events as
// Alive infos, same as unsolicited announcements.
func (c *Client) Search(target string, mxSeconds int) error {
	if mxSeconds < 1 {
		mxSeconds = 1
	}
	if mxSeconds > 5 {
		mxSeconds = 5
	}
	msg := fmt.Sprintf(
		"M-SEARCH * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"MAN: \"ssdp:discover\"\r\n"+
			"MX: %d\r\n"+
			"ST: %s\r\n\r\n",
		Address, mxSeconds, target)

	dst, err := net.ResolveUDPAddr("udp4", Address)
	if err != nil {
		return fmt.Errorf("resolve ssdp multicast address: %w", err)
	}
	_, err = c.conn.WriteTo([]byte(msg), dst)
	return err
}

// parseMessage decodes one SSDP datagram into an Info, or reports ok=false
// for anything the client should ignore (malformed data, or a peer's own
// M-SEARCH request arriving on the multicast socket).
func parseMessage(data []byte) (Info, bool) {
	reader := bufio.NewReader(bytes.NewReader(data))
	firstLine, err := reader.ReadString('\n')
	if err != nil {
		return Info{}, false
	}
	firstLine = strings.TrimRight(firstLine, "\r\n")

	tp := textproto.NewReader(reader)
	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return Info{}, false
	}
	h := http.Header(header)

	switch {
	case strings.HasPrefix(firstLine, "NOTIFY "):
		nts := strings.ToLower(h.Get("NTS"))
		switch nts {
		case "ssdp:alive":
			return infoFromHeader(Alive, h), true
		case "ssdp:byebye":
			return infoFromHeader(ByeBye, h), true
		default:
			return Info{}, false
		}

	case strings.HasPrefix(firstLine, "HTTP/1.1 200") || strings.HasPrefix(firstLine, "HTTP/1.0 200"):
		return infoFromHeader(Alive, h), true

	default:
		// Includes M-SEARCH * HTTP/1.1 (a peer's request) and anything else.
		return Info{}, false
	}
}

func infoFromHeader(kind EventKind, h http.Header) Info {
	usn := h.Get("USN")
	udn, deviceType := splitUSN(usn)
	nt := h.Get("NT")
	if nt == "" {
		nt = h.Get("ST")
	}
	if deviceType == "" {
		deviceType = nt
	}

	return Info{
		Kind:              kind,
		UDN:               udn,
		DeviceType:        deviceType,
		Location:          h.Get("LOCATION"),
		ExpirationSeconds: parseMaxAge(h.Get("CACHE-CONTROL")),
	}
}

// splitUSN splits a USN header of the form "uuid:<udn>" or
// "uuid:<udn>::<nt>" into the UDN (with its "uuid:" prefix intact, matching
// the verbatim <UDN> text in a device description) and the trailing type,
// if present.
func splitUSN(usn string) (udn, nt string) {
	const prefix = "uuid:"
	if !strings.HasPrefix(usn, prefix) {
		return usn, ""
	}
	rest := strings.TrimPrefix(usn, prefix)
	if idx := strings.Index(rest, "::"); idx >= 0 {
		return prefix + rest[:idx], rest[idx+2:]
	}
	return prefix + rest, ""
}

func parseMaxAge(cacheControl string) int {
	for _, part := range strings.FieldsFunc(cacheControl, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err == nil {
				return n
			}
		}
	}
	return 0
}
