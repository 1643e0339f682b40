// Package config resolves the tool's configuration from flags, environment
// and interactive prompts, in that priority order. Resolution is pure given
// a Prompter, so it is testable without touching a terminal.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tabadm/tabenc/pkg/prompt"
	"github.com/tabadm/tabenc/pkg/tableau"
)

// InvalidModeError reports a target encryption mode outside the accepted
// set. It is always raised before any network activity.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid encryption mode %q: must be one of disabled, enabled, enforced", e.Mode)
}

// Credentials is everything needed to sign in.
type Credentials struct {
	Server   string
	Username string
	Password string
	// Site is the content URL of the site to sign in to; empty means the
	// default site.
	Site string
}

// RawCredentials carries values as collected from flags, environment and
// .env defaults, before prompting fills the gaps.
type RawCredentials struct {
	Server   string
	Username string
	Password string
	Site     string
}

// ResolveMode validates the target mode literal. Invalid values are
// rejected here, before credentials are resolved or any request is made.
func ResolveMode(s string) (tableau.EncryptionMode, error) {
	mode, err := tableau.ParseEncryptionMode(s)
	if err != nil {
		return "", &InvalidModeError{Mode: s}
	}
	return mode, nil
}

// ResolveCredentials completes a raw credential set, prompting for whatever
// is still missing, and validates the server URL.
func ResolveCredentials(raw RawCredentials, p prompt.Prompter) (Credentials, error) {
	creds := Credentials{
		Server:   raw.Server,
		Username: raw.Username,
		Password: raw.Password,
		Site:     raw.Site,
	}
	var err error
	if creds.Server == "" {
		if creds.Server, err = p.ReadLine("Server URL (including http:// or https://)"); err != nil {
			return Credentials{}, err
		}
	}
	if err := validateServerURL(creds.Server); err != nil {
		return Credentials{}, err
	}
	if creds.Username == "" {
		if creds.Username, err = p.ReadLine("Username"); err != nil {
			return Credentials{}, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = p.ReadPassword("Password"); err != nil {
			return Credentials{}, err
		}
	}
	// "Default" is how operators name the default site; the API wants an
	// empty content URL for it.
	if strings.EqualFold(creds.Site, "default") {
		creds.Site = ""
	}
	return creds, nil
}

func validateServerURL(server string) error {
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL %q must include an http or https scheme", server)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL %q has no host", server)
	}
	return nil
}
