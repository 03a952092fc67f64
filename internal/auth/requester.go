package auth

import (
	"errors"
	"strings"
)

// Role identifies what a requester is allowed to do.
type Role string

// Known roles.
const (
	RoleCivilian  Role = "civilian"
	RoleAuthority Role = "authority"
)

// ErrUnknownRole is returned when a role string is not recognised.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCivilian:
		return RoleCivilian, nil
	case RoleAuthority:
		return RoleAuthority, nil
	}
	return "", ErrUnknownRole
}

// Requester is the identity an operation runs on behalf of.
// It is passed explicitly into services rather than read from globals.
type Requester struct {
	UserID string
	Role   Role
}

// IsAuthority reports whether the requester holds the authority role.
func (r Requester) IsAuthority() bool {
	return r.Role == RoleAuthority
}

// IsSelf reports whether the requester is the given civilian.
func (r Requester) IsSelf(userID string) bool {
	return r.Role == RoleCivilian && r.UserID != "" && r.UserID == userID
}

// Anonymous reports whether no identity is attached.
func (r Requester) Anonymous() bool {
	return r.UserID == ""
}
