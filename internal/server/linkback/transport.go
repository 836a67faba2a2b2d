package linkback

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/pubflow/internal/htmlx"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/sethvargo/go-retry"
)

const (
	maxBodyBytes     = 1 << 20
	defaultUserAgent = "pubflow-linkback/1.0"
)

// HTTPTransport delivers link-backs over HTTP. Every attempt runs under its
// own timeout; transport errors and 5xx/429 answers are retried with
// exponential backoff, protocol-level rejections are not.
type HTTPTransport struct {
	client    *http.Client
	timeout   time.Duration
	retries   uint64
	backoff   time.Duration
	userAgent string
	logger    logging.Logger
}

func NewHTTPTransport(client *http.Client, timeout time.Duration, retries int, backoff time.Duration, logger logging.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &HTTPTransport{
		client:    client,
		timeout:   timeout,
		retries:   uint64(retries),
		backoff:   backoff,
		userAgent: defaultUserAgent,
		logger:    logger.With("module", "linkback-transport"),
	}
}

// AttemptNotify delivers payload to target. Unreachable targets, 5xx and 429
// answers are retried up to the configured count; anything else fails at once.
func (t *HTTPTransport) AttemptNotify(ctx context.Context, target string, payload Payload) error {
	b := retry.WithMaxRetries(t.retries, retry.NewExponential(t.backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		actx := ctx
		if t.timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		err := t.once(actx, target, payload)
		if err != nil && isTransient(err) {
			t.logger.Debug(ctx, "link-back attempt failed, will retry",
				"kind", payload.Kind, "target", target, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (t *HTTPTransport) once(ctx context.Context, target string, p Payload) error {
	switch p.Kind {
	case KindPingback:
		return t.pingback(ctx, target, p)
	case KindTrackback:
		return t.trackback(ctx, target, p)
	case KindSearchPing:
		return t.searchPing(ctx, target, p)
	default:
		return fmt.Errorf("unknown link-back kind %q", p.Kind)
	}
}

// statusError is a non-2xx HTTP answer.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.code)
}

// transportError wraps failures to reach the remote side at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return false
}

func (t *HTTPTransport) do(req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("User-Agent", t.userAgent)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &transportError{err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, body, &statusError{code: resp.StatusCode}
	}
	return resp, body, nil
}

func (t *HTTPTransport) pingback(ctx context.Context, target string, p Payload) error {
	endpoint, err := t.discover(ctx, target)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?><methodCall><methodName>pingback.ping</methodName><params>`)
	for _, v := range []string{p.SourceURL, target} {
		buf.WriteString(`<param><value><string>`)
		if err := xml.EscapeText(&buf, []byte(v)); err != nil {
			return err
		}
		buf.WriteString(`</string></value></param>`)
	}
	buf.WriteString(`</params></methodCall>`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")

	_, body, err := t.do(req)
	if err != nil {
		return err
	}
	return parsePingbackResponse(body)
}

// discover finds the pingback server of target from the X-Pingback header or
// a <link rel="pingback"> element.
func (t *HTTPTransport) discover(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, body, err := t.do(req)
	if err != nil {
		return "", err
	}

	href := strings.TrimSpace(resp.Header.Get("X-Pingback"))
	if href == "" {
		href, err = htmlx.LinkRel(bytes.NewReader(body), "pingback")
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", target, err)
		}
	}
	if href == "" {
		return "", fmt.Errorf("%w at %s", ErrNoEndpoint, target)
	}

	base, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: bad endpoint %q", ErrNoEndpoint, href)
	}
	return base.ResolveReference(ref).String(), nil
}

type xmlrpcMember struct {
	Name   string `xml:"name"`
	Int    string `xml:"value>int"`
	I4     string `xml:"value>i4"`
	String string `xml:"value>string"`
}

type xmlrpcResponse struct {
	Fault *struct {
		Members []xmlrpcMember `xml:"value>struct>member"`
	} `xml:"fault"`
}

// pingbackAlreadyRegistered is the XML-RPC fault code for a duplicate ping.
const pingbackAlreadyRegistered = "48"

func parsePingbackResponse(body []byte) error {
	var resp xmlrpcResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: malformed pingback response: %v", ErrRejected, err)
	}
	if resp.Fault == nil {
		return nil
	}

	var code, msg string
	for _, m := range resp.Fault.Members {
		switch m.Name {
		case "faultCode":
			code = strings.TrimSpace(m.Int + m.I4)
		case "faultString":
			msg = m.String
		}
	}
	if code == pingbackAlreadyRegistered {
		return nil
	}
	return fmt.Errorf("%w: pingback fault %s: %s", ErrRejected, code, msg)
}

func (t *HTTPTransport) trackback(ctx context.Context, target string, p Payload) error {
	form := url.Values{}
	form.Set("title", p.Title)
	form.Set("excerpt", p.Excerpt)
	form.Set("url", p.SourceURL)
	form.Set("blog_name", p.BlogName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	_, body, err := t.do(req)
	if err != nil {
		return err
	}
	return parseTrackbackResponse(body)
}

type trackbackResponse struct {
	Error   string `xml:"error"`
	Message string `xml:"message"`
}

func parseTrackbackResponse(body []byte) error {
	var resp trackbackResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: malformed trackback response: %v", ErrRejected, err)
	}
	if strings.TrimSpace(resp.Error) != "0" {
		return fmt.Errorf("%w: trackback error %q: %s", ErrRejected, resp.Error, resp.Message)
	}
	return nil
}

func (t *HTTPTransport) searchPing(ctx context.Context, target string, p Payload) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("name", p.BlogName)
	q.Set("url", p.SourceURL)
	q.Set("changesURL", p.ChangesURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	_, _, err = t.do(req)
	return err
}
