package sheets

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no API access token was configured.
var ErrNoToken = errors.New("sheets: no API access token configured")

// staticSource serves one pre-issued access token and refuses an empty one
// instead of sending an anonymous request.
type staticSource struct {
	src oauth2.TokenSource
}

func (s staticSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}

	return tok, nil
}

// StaticToken returns a TokenSource for a pre-issued API access token.
// Smartsheet access tokens do not expire on a schedule, so no refresh is
// attempted.
func StaticToken(accessToken string) oauth2.TokenSource {
	return staticSource{src: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})}
}

// authorized returns a copy of hc whose transport adds the bearer token
// from src to every request.
func authorized(hc *http.Client, src oauth2.TokenSource) *http.Client {
	out := *hc
	out.Transport = &oauth2.Transport{Source: src, Base: hc.Transport}

	return &out
}
