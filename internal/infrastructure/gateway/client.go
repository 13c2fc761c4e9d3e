// Package gateway is the only path from lms-web to the LMS API. It injects
// the session credential, translates failures into domain errors and turns a
// rejected credential into one refresh or one invalidation, however many
// requests observed it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/pkg/metrics"
)

// SessionExpiredMessage is shown once when a rejected credential ends a session.
const SessionExpiredMessage = "Your session has expired. Please log in again."

const maxBodyBytes = 10 << 20

type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero means no bound beyond the caller's context.
	Timeout time.Duration
	// RefreshPath enables credential refresh on 401 when set.
	RefreshPath string
}

// Transport is shared by every workspace's Client.
type Transport struct {
	http        *http.Client
	base        *url.URL
	timeout     time.Duration
	refreshPath string
	log         zerolog.Logger
}

// NewTransport validates cfg. hc defaults to a client without a global timeout.
func NewTransport(cfg Config, hc *http.Client, log zerolog.Logger) (*Transport, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Transport{
		http:        hc,
		base:        base,
		timeout:     cfg.Timeout,
		refreshPath: strings.TrimPrefix(cfg.RefreshPath, "/"),
		log:         log,
	}, nil
}

// Ping reports whether the API answers at all. Any HTTP response counts.
func (t *Transport) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base.String(), nil)
	if err != nil {
		return err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return resp.Body.Close()
}

// NewClient builds a workspace client. It sends anonymously until Bind.
func (t *Transport) NewClient(notifier ports.Notifier) *Client {
	return &Client{t: t, notifier: notifier}
}

// Client implements ports.Gateway for one workspace.
type Client struct {
	t        *Transport
	notifier ports.Notifier
	recovery singleflight.Group

	mu  sync.RWMutex
	src ports.CredentialSource
}

// Bind attaches the credential source.
func (c *Client) Bind(src ports.CredentialSource) {
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
}

func (c *Client) source() ports.CredentialSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.src
}

// Do sends req. A 401 on a request that carried the session credential runs
// the recovery for that credential generation; the request is retried once
// if the session survived with a newer credential.
func (c *Client) Do(ctx context.Context, req ports.Request) (*ports.Response, error) {
	cred, epoch, fromSession := c.credentialFor(req)

	resp, err := c.send(ctx, req, cred)
	if !fromSession || !errors.Is(err, domain.ErrUnauthorized) {
		return resp, err
	}

	if !c.recover(ctx, epoch, true) {
		return nil, err
	}
	next, nextEpoch, ok := c.source().Credential()
	if !ok {
		return nil, err
	}

	resp, err = c.send(ctx, req, &next)
	if errors.Is(err, domain.ErrUnauthorized) {
		c.recover(ctx, nextEpoch, false)
	}
	return resp, err
}

func (c *Client) credentialFor(req ports.Request) (*domain.Credential, uint64, bool) {
	if req.Credential != nil {
		return req.Credential, 0, false
	}
	src := c.source()
	if req.Anonymous || src == nil {
		return nil, 0, false
	}
	cred, epoch, ok := src.Credential()
	if !ok {
		return nil, 0, false
	}
	return &cred, epoch, true
}

type recoveryResult int

const (
	recoveryStale recoveryResult = iota
	recoveryRotated
	recoveryInvalidated
)

func (r recoveryResult) String() string {
	switch r {
	case recoveryRotated:
		return "rotated"
	case recoveryInvalidated:
		return "invalidated"
	default:
		return "stale"
	}
}

// recover resolves a 401 observed with the credential of epoch. Concurrent
// callers for the same epoch share one outcome; later callers find the epoch
// stale and do nothing. It reports whether a retry may succeed.
func (c *Client) recover(ctx context.Context, epoch uint64, allowRefresh bool) bool {
	src := c.source()
	ctx = context.WithoutCancel(ctx)

	v, _, _ := c.recovery.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		cred, current, ok := src.Credential()
		if !ok || current != epoch {
			return recoveryStale, nil
		}
		if allowRefresh && c.t.refreshPath != "" && cred.Refresh != "" {
			fresh, err := c.refresh(ctx, cred.Refresh)
			if err == nil && src.Rotate(ctx, epoch, fresh) {
				return recoveryRotated, nil
			}
			if err != nil {
				c.t.log.Debug().Err(err).Msg("credential refresh failed")
			}
		}
		if src.Invalidate(ctx, epoch) {
			if c.notifier != nil {
				c.notifier.Show(SessionExpiredMessage, domain.KindError)
			}
			return recoveryInvalidated, nil
		}
		return recoveryStale, nil
	})

	result := v.(recoveryResult)
	metrics.SessionRecoveriesTotal.WithLabelValues(result.String()).Inc()
	switch result {
	case recoveryRotated:
		return true
	case recoveryInvalidated:
		return false
	default:
		_, current, ok := src.Credential()
		return ok && current != epoch
	}
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (c *Client) refresh(ctx context.Context, token string) (domain.Credential, error) {
	resp, err := c.send(ctx, ports.Request{
		Method:    http.MethodPost,
		Path:      c.t.refreshPath,
		JSON:      map[string]string{"refresh": token},
		Anonymous: true,
	}, nil)
	if err != nil {
		return domain.Credential{}, err
	}
	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return domain.Credential{}, err
	}
	if out.Access == "" {
		return domain.Credential{}, errors.New("refresh response carried no access token")
	}
	return domain.Credential{Access: out.Access, Refresh: out.Refresh}, nil
}

func (c *Client) send(ctx context.Context, req ports.Request, cred *domain.Credential) (*ports.Response, error) {
	if c.t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.t.timeout)
		defer cancel()
	}

	target, err := c.t.resolve(req)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if cred != nil && cred.Access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cred.Access)
	}

	start := time.Now()
	httpResp, err := c.t.http.Do(httpReq)
	metrics.UpstreamRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "failed").Inc()
		c.t.log.Debug().Err(err).Str("method", method).Str("path", req.Path).Msg("upstream request failed")
		return nil, &domain.RequestError{Message: err.Error(), Cause: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "failed").Inc()
		return nil, &domain.RequestError{Status: httpResp.StatusCode, Message: "read response: " + err.Error(), Cause: err}
	}

	c.t.log.Debug().
		Str("method", method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("upstream request")

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "ok").Inc()
		return &ports.Response{Status: httpResp.StatusCode, Body: data}, nil
	}

	err = translate(httpResp.StatusCode, data)
	metrics.UpstreamRequestsTotal.WithLabelValues(method, outcome(err)).Inc()
	return nil, err
}

func (t *Transport) resolve(req ports.Request) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("gateway: parse path %q: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		ref.RawQuery = req.Query.Encode()
	}
	return t.base.ResolveReference(ref).String(), nil
}

func encodeBody(req ports.Request) (io.Reader, string, error) {
	switch {
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("gateway: encode body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	default:
		return nil, "", nil
	}
}

func encodeMultipart(m *ports.Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("gateway: write field %s: %w", k, err)
		}
	}

	if m.File != nil {
		field := m.FileField
		if field == "" {
			field = "file"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, m.File.Filename))
		ct := m.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("gateway: create file part: %w", err)
		}
		if _, err := part.Write(m.File.Data); err != nil {
			return nil, "", fmt.Errorf("gateway: write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("gateway: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
