package client

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
)

var csrfMetaRegex = regexp.MustCompile(`<meta\s+name="csrf_token"\s+content="([^"]*)"\s*/?>`)

// BootstrapSession obtains an initial session cookie and CSRF token. It
// reads /api/webserver/SesTokInfo and falls back to scraping the legacy
// home page when that endpoint answers without usable values.
func (c *Client) BootstrapSession(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	state, err := c.fetchSesTokInfo(ctx)
	if err != nil {
		if !fallbackAllowed(err) {
			return &SessionBootstrapError{Reason: "SesTokInfo request failed", Err: err}
		}
		c.log.Debug().Err(err).Msg("SesTokInfo unusable, trying home page")

		var homeErr error
		state, homeErr = c.fetchHomePage(ctx)
		if homeErr != nil {
			return &SessionBootstrapError{Reason: "no session from SesTokInfo or home page", Err: errors.Join(err, homeErr)}
		}
	}

	c.setSession(state)
	c.log.Debug().Msg("session bootstrapped")
	return nil
}

// fallbackAllowed reports whether the device answered at all. Network
// failures are not retried against a second endpoint.
func fallbackAllowed(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status != 0
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) fetchSesTokInfo(ctx context.Context) (sessionState, error) {
	resp, err := c.getWithRetry(ctx, pathSesTokInfo)
	if err != nil {
		return sessionState{}, err
	}
	tree, err := Decode(resp.body)
	if err != nil {
		return sessionState{}, &MalformedResponseError{Err: err}
	}
	session, _ := tree.String("response.SesInfo")
	if session == "" {
		return sessionState{}, &MalformedResponseError{Path: "response.SesInfo"}
	}
	token, _ := tree.String("response.TokInfo")
	if token == "" {
		return sessionState{}, &MalformedResponseError{Path: "response.TokInfo"}
	}
	return sessionState{session: session, token: token}, nil
}

func (c *Client) fetchHomePage(ctx context.Context) (sessionState, error) {
	resp, err := c.getWithRetry(ctx, pathHomePage)
	if err != nil {
		return sessionState{}, err
	}
	cookies := resp.header.Values("Set-Cookie")
	if len(cookies) == 0 {
		return sessionState{}, errors.New("home page set no session cookie")
	}
	session, _, _ := strings.Cut(cookies[0], ";")

	matches := csrfMetaRegex.FindSubmatch(resp.body)
	if len(matches) < 2 || len(matches[1]) == 0 {
		return sessionState{}, errors.New("home page has no csrf_token marker")
	}
	return sessionState{session: session, token: string(matches[1])}, nil
}

// getWithRetry issues an unauthenticated GET through the bootstrap client,
// retrying transport failures and 5xx answers.
func (c *Client) getWithRetry(ctx context.Context, path string) (*reply, error) {
	var lastErr error
	for attempt := 0; attempt <= c.bootstrapRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, c.bootstrapClient, http.MethodGet, path, nil)
		if err == nil {
			err = resp.check()
			if err == nil {
				return resp, nil
			}
			if resp.status < 500 {
				return nil, err
			}
		}
		lastErr = err
		c.log.Debug().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("bootstrap request failed")
	}
	return nil, lastErr
}
