package auth

import "strings"

const (
	// LoginSeparator joins a tenant prefix and the base login ("lv_john").
	LoginSeparator = "_"
	// DefaultReservedLogin is the super administrator's login name.
	DefaultReservedLogin = "admin"
)

// Resolution is the structural reading of a raw login string
type Resolution struct {
	TenantPrefix          string
	BaseLogin             string
	IsSuperAdminCandidate bool
	Ambiguous             bool // more than one separator; never authenticates
}

// Prefixed reports whether the login names a tenant
func (r Resolution) Prefixed() bool {
	return r.TenantPrefix != ""
}

// Resolver splits raw logins into tenant prefix and base login
type Resolver struct {
	reserved string
}

// NewResolver creates a resolver for the given reserved super-admin name
func NewResolver(reserved string) *Resolver {
	reserved = strings.TrimSpace(reserved)
	if reserved == "" {
		reserved = DefaultReservedLogin
	}
	return &Resolver{reserved: strings.ToLower(reserved)}
}

// Reserved returns the reserved super-admin login
func (r *Resolver) Reserved() string {
	return r.reserved
}

// Resolve classifies raw. It performs no lookups.
func (r *Resolver) Resolve(raw string) Resolution {
	login := strings.TrimSpace(raw)
	if strings.EqualFold(login, r.reserved) {
		return Resolution{BaseLogin: r.reserved, IsSuperAdminCandidate: true}
	}

	parts := strings.Split(login, LoginSeparator)
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return Resolution{
			TenantPrefix: strings.ToLower(parts[0]),
			BaseLogin:    parts[1],
		}
	case len(parts) > 2:
		return Resolution{BaseLogin: login, Ambiguous: true}
	default:
		// "lv_" or "_john" carry no usable prefix
		return Resolution{BaseLogin: login}
	}
}
