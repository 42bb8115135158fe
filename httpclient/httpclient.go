// Package httpclient is the thin HTTP verb layer shared by the SOAP action
// pipeline, device/SCPD description fetches, and the GENA subscription
// client.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"upnpcp/upnperrors"
)

// Client wraps *http.Client with the verbs the control point needs — plain
// GET/POST plus the SUBSCRIBE/RENEW/UNSUBSCRIBE trio — behind a small
// method set with a default per-call timeout, rather than exposing
// *http.Client's full surface to callers.
type Client struct {
	HTTP           *http.Client
	DefaultTimeout time.Duration
}

// New builds a Client with the given default timeout (applied when the
// caller's context carries no deadline of its own).
func New(defaultTimeout time.Duration) *Client {
	return &Client{
		HTTP:           &http.Client{},
		DefaultTimeout: defaultTimeout,
	}
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.DefaultTimeout)
}

func (c *Client) do(req *http.Request) (status int, header http.Header, body []byte, err error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return 0, nil, nil, &upnperrors.TimeoutError{Op: req.Method + " " + req.URL.String()}
		}
		return 0, nil, nil, &upnperrors.NetworkError{Op: req.Method + " " + req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, &upnperrors.NetworkError{Op: "read body", Err: err}
	}
	return resp.StatusCode, resp.Header, body, nil
}

// Get performs an HTTP GET, returning the raw status and body regardless of
// status (callers that care about non-2xx translate it themselves, as SOAP
// and description fetches have different tolerance for e.g. redirects).
func (c *Client) Get(ctx context.Context, url string) (int, []byte, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build GET request: %w", err)
	}
	status, _, body, err := c.do(req)
	return status, body, err
}

// Post performs an HTTP POST with the given content type and extra headers.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte, extraHeaders map[string]string) (int, http.Header, []byte, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

// SubscribeResult is the outcome of a successful SUBSCRIBE or RENEW.
type SubscribeResult struct {
	SID            string
	GrantedTimeout time.Duration // 0 means "no renewal needed" (Second-infinite)
}

// Subscribe issues a GENA SUBSCRIBE with CALLBACK/NT/TIMEOUT headers (spec
// §6).
func (c *Client) Subscribe(ctx context.Context, publisherURL, callbackURL string, timeout time.Duration) (SubscribeResult, error) {
	return c.subscribeRequest(ctx, publisherURL, map[string]string{
		"CALLBACK": "<" + callbackURL + ">",
		"NT":       "upnp:event",
		"TIMEOUT":  timeoutHeader(timeout),
	})
}

// Renew issues a GENA SUBSCRIBE carrying only SID and TIMEOUT (no
// CALLBACK/NT).
func (c *Client) Renew(ctx context.Context, publisherURL, sid string, timeout time.Duration) (SubscribeResult, error) {
	return c.subscribeRequest(ctx, publisherURL, map[string]string{
		"SID":     sid,
		"TIMEOUT": timeoutHeader(timeout),
	})
}

func (c *Client) subscribeRequest(ctx context.Context, publisherURL string, headers map[string]string) (SubscribeResult, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", publisherURL, nil)
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("build SUBSCRIBE request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	status, header, _, err := c.do(req)
	if err != nil {
		return SubscribeResult{}, err
	}
	if status != http.StatusOK {
		return SubscribeResult{}, &upnperrors.HTTPError{Status: status, Reason: http.StatusText(status)}
	}

	sid := header.Get("SID")
	granted, err := parseTimeoutHeader(header.Get("TIMEOUT"))
	if err != nil {
		return SubscribeResult{}, &upnperrors.UnexpectedError{Reason: err.Error()}
	}
	return SubscribeResult{SID: sid, GrantedTimeout: granted}, nil
}

// Unsubscribe issues a GENA UNSUBSCRIBE carrying only SID.
func (c *Client) Unsubscribe(ctx context.Context, publisherURL, sid string) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", publisherURL, nil)
	if err != nil {
		return fmt.Errorf("build UNSUBSCRIBE request: %w", err)
	}
	req.Header.Set("SID", sid)

	status, _, _, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &upnperrors.HTTPError{Status: status, Reason: http.StatusText(status)}
	}
	return nil
}

func timeoutHeader(d time.Duration) string {
	if d <= 0 {
		return "Second-infinite"
	}
	return "Second-" + strconv.Itoa(int(d.Seconds()))
}

func parseTimeoutHeader(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("missing TIMEOUT header")
	}
	if strings.EqualFold(v, "Second-infinite") {
		return 0, nil
	}
	n := strings.TrimPrefix(v, "Second-")
	n = strings.TrimPrefix(n, "second-")
	seconds, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("malformed TIMEOUT header %q: %w", v, err)
	}
	return time.Duration(seconds) * time.Second, nil
}
