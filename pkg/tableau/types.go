package tableau

import "fmt"

// EncryptionMode is a site's extract encryption-at-rest setting.
type EncryptionMode string

const (
	EncryptionDisabled EncryptionMode = "disabled"
	EncryptionEnabled  EncryptionMode = "enabled"
	EncryptionEnforced EncryptionMode = "enforced"
)

// Modes lists every encryption mode the server accepts.
func Modes() []EncryptionMode {
	return []EncryptionMode{EncryptionDisabled, EncryptionEnabled, EncryptionEnforced}
}

// ParseEncryptionMode validates a mode literal. Anything outside the three
// accepted values is rejected.
func ParseEncryptionMode(s string) (EncryptionMode, error) {
	switch EncryptionMode(s) {
	case EncryptionDisabled, EncryptionEnabled, EncryptionEnforced:
		return EncryptionMode(s), nil
	}
	return "", fmt.Errorf("invalid encryption mode %q: must be one of disabled, enabled, enforced", s)
}

// Site is a tenant on the server. The client only ever reads site ids and
// writes the encryption mode attribute.
type Site struct {
	ID             string
	Name           string
	ContentURL     string
	EncryptionMode EncryptionMode
}

// Session holds the opaque auth token returned by sign-in and the id of the
// site the token is scoped to. It is never persisted across runs.
type Session struct {
	Token  string
	SiteID string
}

// Group is a user group within a site.
type Group struct {
	ID   string
	Name string
}

// User is a member of a site.
type User struct {
	ID       string
	Name     string
	SiteRole string
}
