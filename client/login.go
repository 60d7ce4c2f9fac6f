package client

import (
	"context"
	"encoding/xml"
	"fmt"
)

// LoginState tracks progress through the login sequence.
type LoginState int

const (
	StateUnauthenticated LoginState = iota
	StateSessionBootstrapped
	StatePasswordTypeVerified
	StateLoginSubmitted
	StateAuthenticated
	StateFailed
)

func (s LoginState) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateSessionBootstrapped:
		return "SESSION_BOOTSTRAPPED"
	case StatePasswordTypeVerified:
		return "PASSWORD_TYPE_VERIFIED"
	case StateLoginSubmitted:
		return "LOGIN_SUBMITTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("LoginState(%d)", int(s))
}

type loginRequest struct {
	XMLName      xml.Name `xml:"request"`
	Username     string   `xml:"Username"`
	Password     string   `xml:"Password"`
	PasswordType string   `xml:"password_type"`
}

// State returns the current login state.
func (c *Client) State() LoginState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.loginState
}

// Login bootstraps a session, checks the advertised password scheme and
// submits the hashed credentials. Every failure is returned; a failed
// login can be retried by calling Login again.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.transition(StateUnauthenticated)

	if err := c.BootstrapSession(ctx); err != nil {
		return c.fail(err)
	}
	c.transition(StateSessionBootstrapped)

	loginState, err := c.Request(ctx, pathStateLogin, nil)
	if err != nil {
		return c.fail(fmt.Errorf("read login state: %w", err))
	}
	passwordType, _ := loginState.String("response.password_type")
	if passwordType != PasswordType {
		return c.fail(&UnsupportedPasswordSchemeError{Value: passwordType})
	}
	c.transition(StatePasswordTypeVerified)

	username, password, token := c.credentials()
	req := loginRequest{
		Username:     username,
		Password:     HashPassword(username, password, token),
		PasswordType: PasswordType,
	}
	c.transition(StateLoginSubmitted)
	resp, err := c.Request(ctx, pathLogin, req)
	if err != nil {
		return c.fail(fmt.Errorf("submit login: %w", err))
	}

	if !IsOK(resp) {
		code, _ := resp.ErrorCode()
		return c.fail(&LoginRejectedError{Code: code, Response: resp})
	}

	c.transition(StateAuthenticated)
	c.log.Info().Str("username", username).Msg("logged in")
	return nil
}

func (c *Client) transition(next LoginState) {
	c.stateMu.Lock()
	prev := c.loginState
	c.loginState = next
	c.stateMu.Unlock()

	if prev != next {
		c.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("login state")
	}
}

func (c *Client) fail(err error) error {
	c.transition(StateFailed)
	c.log.Warn().Err(err).Msg("login failed")
	return err
}
