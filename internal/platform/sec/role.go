// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access
	RoleAdmin UserRole = "admin"

	// Can manage funds, investors, and fee schedules
	RoleFundManager UserRole = "fund_manager"

	// Can read fund data and build reports
	RoleAnalyst UserRole = "analyst"

	// Default role for limited partners using the investor portal
	RoleInvestor UserRole = "investor"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleAdmin:
		return 40
	case RoleFundManager:
		return 30
	case RoleAnalyst:
		return 20
	case RoleInvestor:
		return 10
	default:
		return 0
	}
}
