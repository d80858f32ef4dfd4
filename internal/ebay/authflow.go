// Package ebay links the user's eBay account and publishes items to it.
package ebay

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
)

const (
	AuthBaseURL    = "https://auth.ebay.com/oauth2/authorize"
	CallbackScheme = "listlift"
	DefaultSiteID  = "EBAY_GB"
)

var (
	ErrCancelled        = errors.New("sign in cancelled")
	ErrInvalidCallback  = errors.New("invalid OAuth callback")
	ErrNotAuthenticated = errors.New("eBay account not linked")
	ErrMissingSpecifics = errors.New("required item specifics missing")
)

// AuthorizeURL builds the consent page URL.
func AuthorizeURL(clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return AuthBaseURL + "?" + q.Encode()
}

// parseCallback extracts the authorization code from the redirect URL and
// checks that it answers the request identified by state.
func parseCallback(callbackURL, state string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if u.Scheme != CallbackScheme {
		return "", fmt.Errorf("%w: unexpected scheme %q", ErrInvalidCallback, u.Scheme)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		if e == "access_denied" {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidCallback, e)
	}
	if q.Get("state") != state {
		return "", fmt.Errorf("%w: state mismatch", ErrInvalidCallback)
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: missing code", ErrInvalidCallback)
	}
	return code, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
