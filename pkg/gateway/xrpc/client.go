// Package xrpc talks to an AT Protocol service over HTTP and implements
// gateway.Gateway for one authenticated account.
package xrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/gateway"
)

const (
	defaultServiceURL     = "https://bsky.social"
	defaultTimeout        = 30 * time.Second
	headerAuthorization   = "Authorization"
	headerUserAgent       = "User-Agent"
	headerContentType     = "Content-Type"
	contentTypeJSON       = "application/json"
	nsidCreateSession     = "com.atproto.server.createSession"
	nsidRefreshSession    = "com.atproto.server.refreshSession"
	nsidCreateRecord      = "com.atproto.repo.createRecord"
	nsidUploadBlob        = "com.atproto.repo.uploadBlob"
	nsidGetTimeline       = "app.bsky.feed.getTimeline"
	nsidGetAuthorFeed     = "app.bsky.feed.getAuthorFeed"
	nsidGetPosts          = "app.bsky.feed.getPosts"
	nsidGetProfile        = "app.bsky.actor.getProfile"
	nsidListNotifications = "app.bsky.notification.listNotifications"
	nsidGetUnreadCount    = "app.bsky.notification.getUnreadCount"
	nsidUpdateSeen        = "app.bsky.notification.updateSeen"
	nsidDeleteRecord      = "com.atproto.repo.deleteRecord"
	nsidMuteActor         = "app.bsky.graph.muteActor"
	nsidUnmuteActor       = "app.bsky.graph.unmuteActor"
	nsidGetPostThread     = "app.bsky.feed.getPostThread"
	nsidGetFeed           = "app.bsky.feed.getFeed"
	nsidSearchPosts       = "app.bsky.feed.searchPosts"
	nsidSearchActors      = "app.bsky.actor.searchActors"
	nsidGetFollowers      = "app.bsky.graph.getFollowers"
	nsidGetFollows        = "app.bsky.graph.getFollows"
	nsidGetLists          = "app.bsky.graph.getLists"
	nsidGetList           = "app.bsky.graph.getList"
	nsidGetListFeed       = "app.bsky.graph.getListFeed"
)

const errorBodyReadLimit int64 = 2048

// RefreshFunc receives rotated tokens so they can be persisted.
type RefreshFunc func(ctx context.Context, creds gateway.Credentials) error

// Option configures optional client behavior.
type Option func(*options)

type options struct {
	httpClient *http.Client
	userAgent  string
	onRefresh  RefreshFunc
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithUserAgent(agent string) Option {
	return func(o *options) {
		o.userAgent = strings.TrimSpace(agent)
	}
}

// WithRefreshHandler is called after every successful token refresh.
func WithRefreshHandler(fn RefreshFunc) Option {
	return func(o *options) {
		o.onRefresh = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Client is an authenticated session against one service.
type Client struct {
	opts    options
	baseURL string

	mu    sync.RWMutex
	creds gateway.Credentials
}

var _ gateway.Gateway = (*Client)(nil)

func newClient(creds gateway.Credentials, opts options) *Client {
	base := strings.TrimRight(strings.TrimSpace(creds.ServiceURL), "/")
	if base == "" {
		base = defaultServiceURL
	}
	creds.ServiceURL = base
	return &Client{opts: opts, baseURL: base, creds: creds}
}

// Credentials returns the current tokens.
func (c *Client) Credentials() gateway.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

func (c *Client) endpoint(nsid string, query url.Values) string {
	u := fmt.Sprintf("%s/xrpc/%s", c.baseURL, nsid)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type request struct {
	method      string
	nsid        string
	query       url.Values
	rawBody     []byte
	contentType string
	token       string
}

// call performs one authenticated call and refreshes the access token once
// when the service reports it expired.
func (c *Client) call(ctx context.Context, method, nsid string, query url.Values, payload any, out any) error {
	var raw []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+nsid+" request")
		}
		raw = encoded
	}
	return c.callRaw(ctx, request{method: method, nsid: nsid, query: query, rawBody: raw, contentType: contentTypeJSON}, out)
}

func (c *Client) callRaw(ctx context.Context, req request, out any) error {
	req.token = c.Credentials().AccessJWT
	err := c.do(ctx, req, out)
	if !isExpired(err) {
		return err
	}
	if refreshErr := c.refresh(ctx); refreshErr != nil {
		return refreshErr
	}
	req.token = c.Credentials().AccessJWT
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.rawBody != nil {
		body = bytes.NewReader(req.rawBody)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.nsid, req.query), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+req.nsid+" request")
	}
	if body != nil && req.contentType != "" {
		httpReq.Header.Set(headerContentType, req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set(headerAuthorization, "Bearer "+req.token)
	}
	if c.opts.userAgent != "" {
		httpReq.Header.Set(headerUserAgent, c.opts.userAgent)
	}

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport(req.nsid, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(req.nsid, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read "+req.nsid+" response")
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRemoteRejected, err, "decode "+req.nsid+" response")
	}
	return nil
}

type sessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
}

func (c *Client) refresh(ctx context.Context) error {
	current := c.Credentials()
	if current.RefreshJWT == "" {
		return pkgerrors.New(pkgerrors.CodeNotAuthenticated, "session expired")
	}
	var out sessionResponse
	err := c.do(ctx, request{method: http.MethodPost, nsid: nsidRefreshSession, token: current.RefreshJWT}, &out)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeRemoteRejected) || isExpired(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotAuthenticated, err, "session refresh rejected")
		}
		return err
	}

	next := current
	next.AccessJWT = out.AccessJWT
	next.RefreshJWT = out.RefreshJWT
	if out.Handle != "" {
		next.Handle = out.Handle
	}
	c.mu.Lock()
	c.creds = next
	c.mu.Unlock()

	if c.opts.onRefresh != nil {
		// Persistence failures do not invalidate the fresh tokens in memory.
		_ = c.opts.onRefresh(ctx, next)
	}
	return nil
}

// xrpcError is the error body returned by XRPC endpoints.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusError keeps the HTTP status and XRPC error name for classification.
type statusError struct {
	status int
	name   string
	msg    string
}

func (e *statusError) Error() string {
	if e.name != "" {
		return fmt.Sprintf("status %d %s: %s", e.status, e.name, e.msg)
	}
	return fmt.Sprintf("status %d: %s", e.status, e.msg)
}

func classifyStatus(nsid string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	se := &statusError{status: resp.StatusCode, msg: strings.TrimSpace(string(data))}
	var body xrpcError
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		se.name = body.Error
		se.msg = body.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, se, nsid+" unavailable")
	case resp.StatusCode == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeNotAuthenticated, se, nsid+" unauthorized")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeRemoteRejected, se, nsid+" rejected")
	}
}

func classifyTransport(nsid string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, nsid+" canceled")
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, nsid+" timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, nsid+" request failed")
	}
}

func isExpired(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.name == "ExpiredToken" || se.name == "InvalidToken"
}
