package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Role is the authorization role carried by an Identity.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	// RoleUnknown marks a role value the API returned but the client does not
	// recognise. It never inherits permissions from the known roles.
	RoleUnknown    Role = "unknown"
)

// ParseRole maps a raw role string onto one of the known roles.
// Anything else yields RoleUnknown and false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleInstructor:
		return RoleInstructor, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleUnknown, false
	}
}

// Selectable reports whether a user may pick this role at registration.
func (r Role) Selectable() bool {
	return r == RoleStudent || r == RoleInstructor || r == RoleAdmin
}

// UnmarshalJSON normalises unrecognised roles to RoleUnknown.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r, _ = ParseRole(s)
	return nil
}

// ID is an opaque identifier issued by the LMS API. The API encodes ids as
// JSON numbers; they are kept as strings so callers never do arithmetic on them.
type ID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Identity is the authenticated user as seen by the client.
type Identity struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role"`
	Avatar    string `json:"avatar,omitempty"`
}

// Credential is the opaque bearer material returned by the login endpoint.
// It is stored and forwarded, never decoded.
type Credential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Empty reports whether the credential carries no access token.
func (c Credential) Empty() bool { return c.Access == "" }

// Session pairs an Identity with the credential that authenticates it.
// Epoch identifies the credential generation; it changes on every transition.
type Session struct {
	Identity   Identity   `json:"identity"`
	Credential Credential `json:"-"`
	Epoch      uint64     `json:"-"`
	StartedAt  time.Time  `json:"started_at"`
}

// SessionEvent names a session transition.
type SessionEvent string

const (
	SessionLoggedIn    SessionEvent = "logged_in"
	SessionRestored    SessionEvent = "restored"
	SessionReloaded    SessionEvent = "reloaded"
	SessionRotated     SessionEvent = "rotated"
	SessionLoggedOut   SessionEvent = "logged_out"
	SessionInvalidated SessionEvent = "invalidated"
)

// SessionChange is delivered to session subscribers. Identity is nil when the
// transition left the client anonymous.
type SessionChange struct {
	Event    SessionEvent
	Identity *Identity
}
