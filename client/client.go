package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/titpetric/hilink-cli/model"
)

const (
	pathSesTokInfo = "/api/webserver/SesTokInfo"
	pathHomePage   = "/html/home.html"
	pathStateLogin = "/api/user/state-login"
	pathLogin      = "/api/user/login"
	pathLogout     = "/api/user/logout"
)

const (
	headerToken    = "__RequestVerificationToken"
	headerTokenOne = "__RequestVerificationTokenOne"
)

const (
	defaultBootstrapRetries       = 2
	defaultBootstrapHeaderTimeout = 5 * time.Second
	defaultBootstrapTimeout       = 10 * time.Second
)

// Options holds client configuration
type Options struct {
	Host     string // "192.168.8.1" or "http://192.168.8.1"
	Auth     string // "username:password"
	Username string // overrides Auth
	Password string // overrides Auth

	// Session and Token seed a previously obtained session.
	Session string
	Token   string

	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// BootstrapRetries defaults to 2; a negative value disables retries.
	BootstrapRetries       int
	BootstrapHeaderTimeout time.Duration
	BootstrapTimeout       time.Duration
}

// sessionState is mutated only by setSession and applyResponse.
type sessionState struct {
	session string
	token   string
}

// Client talks to a HiLink device's management API. Requests on one
// Client are serialized; the session cookie and CSRF token are refreshed
// from every response.
type Client struct {
	httpClient      *http.Client
	bootstrapClient *http.Client
	log             zerolog.Logger

	bootstrapRetries int

	reqMu   sync.Mutex
	loginMu sync.Mutex

	stateMu      sync.Mutex
	host         string
	baseURL      string
	username     string
	password     string
	state        sessionState
	loginState   LoginState
	onAuthChange func(model.Auth)
}

// NewClient creates a new device client
func NewClient(opts *Options) (*Client, error) {
	if opts == nil || strings.TrimSpace(opts.Host) == "" {
		return nil, fmt.Errorf("host is required")
	}

	username, password := parseAuth(opts.Auth)
	if opts.Username != "" {
		username = opts.Username
	}
	if opts.Password != "" {
		password = opts.Password
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	retries := opts.BootstrapRetries
	switch {
	case retries == 0:
		retries = defaultBootstrapRetries
	case retries < 0:
		retries = 0
	}
	headerTimeout := opts.BootstrapHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = defaultBootstrapHeaderTimeout
	}
	total := opts.BootstrapTimeout
	if total <= 0 {
		total = defaultBootstrapTimeout
	}

	return &Client{
		httpClient:       httpClient,
		bootstrapClient:  newBootstrapClient(httpClient, headerTimeout, total),
		log:              log.With().Str("component", "hilink").Logger(),
		bootstrapRetries: retries,
		host:             opts.Host,
		baseURL:          baseURL(opts.Host),
		username:         username,
		password:         password,
		state: sessionState{
			session: opts.Session,
			token:   opts.Token,
		},
	}, nil
}

// parseAuth splits "username:password". Without a colon the same string
// is used for both.
func parseAuth(auth string) (string, string) {
	if username, password, ok := strings.Cut(auth, ":"); ok {
		return username, password
	}
	return auth, auth
}

func baseURL(host string) string {
	u := strings.TrimSpace(host)
	if !strings.HasPrefix(u, "http") {
		u = "http://" + u
	}
	return strings.TrimSuffix(u, "/")
}

// newBootstrapClient bounds time to first byte and total transfer time
// for the session bootstrap request.
func newBootstrapClient(base *http.Client, headerTimeout, total time.Duration) *http.Client {
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		t.ResponseHeaderTimeout = headerTimeout
		transport = t
	}
	return &http.Client{
		Transport:     transport,
		CheckRedirect: base.CheckRedirect,
		Timeout:       total,
	}
}

// OnAuthChange registers a callback invoked with a fresh snapshot after
// every request. A nil callback unregisters it.
func (c *Client) OnAuthChange(fn func(model.Auth)) {
	c.stateMu.Lock()
	c.onAuthChange = fn
	c.stateMu.Unlock()
}

// ExportAuth returns a snapshot of the endpoint, credentials and session.
func (c *Client) ExportAuth() model.Auth {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.exportLocked()
}

func (c *Client) exportLocked() model.Auth {
	return model.Auth{
		Host:     c.host,
		Username: c.username,
		Password: c.password,
		Session:  c.state.session,
		Token:    c.state.token,
	}
}

// ImportAuth restores a snapshot produced by ExportAuth.
func (c *Client) ImportAuth(auth model.Auth) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.host = auth.Host
	c.baseURL = baseURL(auth.Host)
	c.username = auth.Username
	c.password = auth.Password
	c.state = sessionState{
		session: auth.Session,
		token:   auth.Token,
	}
}

// SMS returns the SMS API bound to this client.
func (c *Client) SMS() *SMSClient {
	return NewSMSClient(c, &c.log)
}

// Request sends a GET to path when body is nil, otherwise a POST with the
// XML encoded body, and returns the decoded response.
func (c *Client) Request(ctx context.Context, path string, body any) (Tree, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	method := http.MethodGet
	var payload []byte
	if body != nil {
		method = http.MethodPost
		var err error
		if payload, err = Encode(body); err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, c.httpClient, method, path, payload)
	if err != nil {
		return nil, err
	}

	c.applyResponse(resp.header)

	if err := resp.check(); err != nil {
		return nil, err
	}
	tree, err := Decode(resp.body)
	if err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	return tree, nil
}

// IsLoggedIn probes the login state. Any failure reports false.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	tree, err := c.Request(ctx, pathStateLogin, nil)
	if err != nil {
		c.log.Debug().Err(err).Msg("login state probe failed")
		return false
	}
	state, err := tree.Int("response.State")
	if err != nil {
		c.log.Debug().Err(err).Msg("login state probe failed")
		return false
	}
	return state == 0
}

// Logout asks the device to end the session and clears the local session
// whether or not the device call succeeds.
func (c *Client) Logout(ctx context.Context) {
	if !c.ExportAuth().Empty() {
		tree, err := c.Request(ctx, pathLogout, Tree{"request": map[string]any{"Logout": 1}})
		switch {
		case err != nil:
			c.log.Warn().Err(err).Msg("logout request failed")
		case !IsOK(tree):
			code, _ := tree.ErrorCode()
			c.log.Warn().Str("code", code).Msg("logout rejected by device")
		}
	}

	c.setSession(sessionState{})
	c.transition(StateUnauthenticated)
}

// reply is a fully read HTTP response.
type reply struct {
	method string
	url    string
	status int
	header http.Header
	body   []byte
}

func (r *reply) check() error {
	if r.status < 200 || r.status > 299 {
		return &TransportError{Op: r.method, URL: r.url, Status: r.status}
	}
	return nil
}

// send performs one HTTP exchange with the current session headers.
func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, payload []byte) (*reply, error) {
	c.stateMu.Lock()
	url := c.baseURL + path
	state := c.state
	c.stateMu.Unlock()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	decorate(req, state)

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method, URL: url, Status: resp.StatusCode, Err: err}
	}

	return &reply{
		method: method,
		url:    url,
		status: resp.StatusCode,
		header: resp.Header,
		body:   respBody,
	}, nil
}

// decorate sets the fixed headers plus the session cookie and CSRF token.
func decorate(req *http.Request, state sessionState) {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept-Language", "en-us")
	if state.token != "" {
		req.Header[headerToken] = []string{state.token}
	}
	if state.session != "" {
		req.Header.Set("Cookie", state.session)
	}
}

// applyResponse refreshes the session from response headers and then
// fires the auth change callback.
func (c *Client) applyResponse(h http.Header) {
	c.stateMu.Lock()
	if cookies := h.Values("Set-Cookie"); len(cookies) > 0 {
		c.state.session = cookies[0]
	}
	// The rotation header is sent right after login, the standard one
	// afterwards. The standard one wins if both are present.
	if token := h.Get(headerTokenOne); token != "" {
		c.state.token = token
	}
	if token := h.Get(headerToken); token != "" {
		c.state.token = token
	}
	auth := c.exportLocked()
	fn := c.onAuthChange
	c.stateMu.Unlock()

	if fn != nil {
		fn(auth)
	}
}

// setSession replaces the session and fires the auth change callback.
func (c *Client) setSession(state sessionState) {
	c.stateMu.Lock()
	c.state = state
	auth := c.exportLocked()
	fn := c.onAuthChange
	c.stateMu.Unlock()

	if fn != nil {
		fn(auth)
	}
}

func (c *Client) credentials() (username, password, token string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.username, c.password, c.state.token
}
