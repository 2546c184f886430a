package model

import "github.com/google/uuid"

type Role string

const (
	RoleDispatcher Role = "DISPATCHER"
	RoleDriver     Role = "DRIVER"
	RoleProvider   Role = "PROVIDER"
)

// Principal is the authenticated caller as extracted from the access
// token.
type Principal struct {
	UserID     uuid.UUID
	Role       Role
	ProviderID uuid.UUID // set for PROVIDER users
}

func (p Principal) IsDispatcher() bool { return p.Role == RoleDispatcher }
func (p Principal) IsDriver() bool     { return p.Role == RoleDriver }
func (p Principal) IsProvider() bool   { return p.Role == RoleProvider }
