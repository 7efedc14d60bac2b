package neo

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// expirySlack is how early an access token is treated as expired, so a
// token never dies mid-request.
const expirySlack = 5 * time.Minute

// Authenticate exchanges the configured credentials for a pairing token and
// an access token. It is safe to call again after a credential change; any
// cached tokens are discarded first.
func (c *Client) Authenticate(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	c.pairingToken = ""
	c.token = nil

	if err := c.requestPairingToken(ctx); err != nil {
		return err
	}
	return c.requestAccessToken(ctx)
}

// ensureAccessToken returns a bearer token, refreshing it first when it is
// missing or within the expiry slack. The token mutex makes refresh
// single-flight: concurrent callers wait and reuse the refreshed token
// instead of issuing duplicate refresh calls.
func (c *Client) ensureAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != nil && time.Now().Add(expirySlack).Before(c.token.Expiry) {
		return c.token.AccessToken, nil
	}
	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

// invalidateAccessToken drops the cached access token so the next call
// refreshes. Used after the API rejects a request with 401.
func (c *Client) invalidateAccessToken() {
	c.tokenMu.Lock()
	c.token = nil
	c.tokenMu.Unlock()
}

// refreshLocked refreshes the access token, re-pairing once when the
// pairing token itself has been revoked. Callers must hold tokenMu.
func (c *Client) refreshLocked(ctx context.Context) error {
	if c.pairingToken == "" {
		if err := c.requestPairingToken(ctx); err != nil {
			return err
		}
		return c.requestAccessToken(ctx)
	}

	err := c.requestAccessToken(ctx)
	if err == nil {
		return nil
	}
	if KindOf(err) != KindAuth {
		return err
	}

	// Pairing token rejected. One attempt with fresh credentials, then give up.
	c.log.Warn("Access token refresh rejected, re-pairing with credentials")
	c.pairingToken = ""
	if err := c.requestPairingToken(ctx); err != nil {
		return err
	}
	return c.requestAccessToken(ctx)
}

// requestPairingToken exchanges username/password for a pairing token.
// Callers must hold tokenMu.
func (c *Client) requestPairingToken(ctx context.Context) error {
	form := url.Values{
		"username":               {c.username},
		"password":               {c.password},
		"client":                 {"ios"},
		"deviceName":             {c.deviceName},
		"deviceUniqueIdentifier": {c.deviceID},
	}

	var resp pairingResponse
	if err := c.postForm(ctx, "/api/v0/client/user-devices", form, &resp, "request pairing token"); err != nil {
		if e, ok := AsError(err); ok && e.StatusCode == 400 {
			// The pairing endpoint reports bad credentials as 400
			e.Kind = KindAuth
		}
		return err
	}
	if resp.PairingToken == "" {
		return &Error{Kind: KindAuth, Op: "request pairing token", Msg: "no pairing token in response"}
	}

	c.pairingToken = resp.PairingToken
	c.log.Debug("Pairing token obtained")
	return nil
}

// requestAccessToken exchanges the pairing token for a bearer token.
// Callers must hold tokenMu.
func (c *Client) requestAccessToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.pairingToken},
		"client_id":     {"app"},
	}

	var resp tokenResponse
	if err := c.postForm(ctx, "/api/v0/oauth/token", form, &resp, "request access token"); err != nil {
		if e, ok := AsError(err); ok && (e.StatusCode == 400 || e.StatusCode == 401) {
			e.Kind = KindAuth
		}
		return err
	}
	if resp.AccessToken == "" {
		return &Error{Kind: KindAuth, Op: "request access token", Msg: "no access token in response"}
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.token = &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	c.log.Debug("Access token obtained", "expires_in", expiresIn)
	return nil
}
