// Package auth holds roles, capabilities, API tokens and password hashing.
package auth

import (
	"strings"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a stored role string to a Role. Unknown values fall back to RoleUser.
func ParseRole(value string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	return string(r)
}

type Capability string

const (
	CapOrdersManage   Capability = "orders:manage"
	CapProductsManage Capability = "products:manage"
	CapSettingsManage Capability = "settings:manage"
	CapCustomersRead  Capability = "customers:read"
	CapReportsExport  Capability = "reports:export"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: {
		CapOrdersManage:   {},
		CapProductsManage: {},
		CapSettingsManage: {},
		CapCustomersRead:  {},
		CapReportsExport:  {},
	},
	RoleUser: {},
}

// Can reports whether role grants capability.
func Can(role Role, capability Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// Capabilities lists what role grants, in a stable order.
func Capabilities(role Role) []Capability {
	all := []Capability{CapOrdersManage, CapProductsManage, CapSettingsManage, CapCustomersRead, CapReportsExport}
	granted := make([]Capability, 0, len(all))
	for _, c := range all {
		if Can(role, c) {
			granted = append(granted, c)
		}
	}
	return granted
}
