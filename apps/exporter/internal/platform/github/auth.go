// Package github builds the authenticated go-github client the exporter
// commits through. The client is created lazily and shared for the life of
// the process.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const (
	defaultAPIURL = "https://api.github.com"
	userAgent     = "gloss-exporter"
)

// Auth selects how the client authenticates. Token wins when set; otherwise
// the GitHub App fields must all be present.
type Auth struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	// BaseURL overrides the API root, e.g. the mock-github app. Empty means api.github.com.
	BaseURL string
}

// ErrNoCredentials is returned when neither a token nor app credentials are set.
var ErrNoCredentials = errors.New("github: no token or app credentials configured")

// Lazy returns a function that builds the client on first call and returns the
// same client (or the same error) on every later call.
func Lazy(auth Auth) func() (*gogithub.Client, error) {
	return sync.OnceValues(func() (*gogithub.Client, error) {
		return New(auth)
	})
}

// New creates a client for auth.
func New(auth Auth) (*gogithub.Client, error) {
	base, err := apiURL(auth.BaseURL)
	if err != nil {
		return nil, err
	}

	var httpClient *http.Client
	switch {
	case auth.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	case auth.AppID != 0 && auth.InstallationID != 0 && auth.PrivateKeyPath != "":
		tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, auth.AppID, auth.InstallationID, auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("github app auth: %w", err)
		}
		// Installation tokens are minted against the same API root.
		tr.BaseURL = strings.TrimSuffix(base.String(), "/")
		httpClient = &http.Client{Transport: tr}
	default:
		return nil, ErrNoCredentials
	}

	c := gogithub.NewClient(httpClient)
	c.BaseURL = base
	c.UserAgent = userAgent
	return c, nil
}

// apiURL normalises raw to an absolute URL with a trailing slash, as go-github
// requires.
func apiURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = defaultAPIURL
	}
	u, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse github api url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("github api url %q is not absolute", raw)
	}
	return u, nil
}
