package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/webmasters/v3"
)

const (
	ScopeReadOnly  = webmasters.WebmastersReadonlyScope
	ScopeReadWrite = webmasters.WebmastersScope
)

var ErrEmptyKeyFile = errors.New("searchconsole: credentials key file path is empty")

// Credentials is the service-account identity shared by every call. It is
// built once at startup and never mutated.
type Credentials struct {
	KeyFile     string
	Subject     string
	ClientEmail string
	Scopes      []string

	tokenSource oauth2.TokenSource
}

// LoadCredentials reads a service-account key file. An empty subject means no
// impersonation.
func LoadCredentials(keyFile, subject string, scopes ...string) (*Credentials, error) {
	if strings.TrimSpace(keyFile) == "" {
		return nil, ErrEmptyKeyFile
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := ParseCredentials(data, subject, scopes...)
	if err != nil {
		return nil, err
	}
	creds.KeyFile = keyFile
	return creds, nil
}

// ParseCredentials builds Credentials from service-account key JSON.
func ParseCredentials(data []byte, subject string, scopes ...string) (*Credentials, error) {
	if len(scopes) == 0 {
		scopes = []string{ScopeReadOnly}
	}
	jwtCfg, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	jwtCfg.Subject = strings.TrimSpace(subject)

	// Tokens are fetched on first use and reused until expiry.
	ts := oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(context.Background()))

	return &Credentials{
		Subject:     jwtCfg.Subject,
		ClientEmail: jwtCfg.Email,
		Scopes:      append([]string(nil), scopes...),
		tokenSource: ts,
	}, nil
}

// TokenSource returns the shared OAuth2 token source.
func (c *Credentials) TokenSource() oauth2.TokenSource {
	if c == nil {
		return nil
	}
	return c.tokenSource
}

// Scopes for the requested access level.
func Scopes(allowWrites bool) []string {
	if allowWrites {
		return []string{ScopeReadWrite}
	}
	return []string{ScopeReadOnly}
}
