package identity

import (
	"fmt"
	"strings"
)

// Role is the closed set of caller roles. The zero value is invalid so a
// missing or unrecognized role can never fall through a switch silently.
type Role int

const (
	RoleUnknown Role = iota
	RolePatient
	RoleDentist
	RoleAdmin
)

// ParseRole maps a token claim to a Role. Unrecognized strings are an error,
// not a silent default.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PATIENT":
		return RolePatient, nil
	case "DENTIST":
		return RoleDentist, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return RoleUnknown, fmt.Errorf("identity: unrecognized role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "PATIENT"
	case RoleDentist:
		return "DENTIST"
	case RoleAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// Attribution is the lowercase label used in cancellation notes.
func (r Role) Attribution() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDentist:
		return "dentist"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}
