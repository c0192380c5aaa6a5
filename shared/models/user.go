package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a tenant collaborator record
type User struct {
	CognitoID   string     `json:"cognito_id" gorm:"type:varchar(255);primaryKey"`
	TenantID    uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index"`
	Name        string     `json:"name" gorm:"type:varchar(255)"`
	Role        Role       `json:"role" gorm:"type:varchar(20);default:'MECHANIC'"`
	Active      bool       `json:"active" gorm:"default:true"`
	CreatedAt   time.Time  `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// Role is a closed set of access roles. SUPER_ADMIN operates the platform
// itself; the other three belong to a tenant's fleet.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"    // fleet manager
	RoleMechanic   Role = "MECHANIC" // operational
	RoleAuditor    Role = "AUDITOR"  // read-only
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleMechanic, RoleAuditor:
		return true
	}
	return false
}

func (User) TableName() string {
	return "users"
}

func (u *User) GetID() string {
	return u.CognitoID
}

// UserInfo represents user information from JWT claims
type UserInfo struct {
	CognitoID string     `json:"cognito_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
}

func (ui *UserInfo) IsSuperAdmin() bool {
	return ui.Role == RoleSuperAdmin
}

func (ui *UserInfo) IsFleetManager() bool {
	return ui.Role == RoleAdmin
}

// CanManageTenant reports whether the user may mutate the given tenant's
// registration data (super admins may mutate any tenant).
func (ui *UserInfo) CanManageTenant(tenantID uuid.UUID) bool {
	if ui.IsSuperAdmin() {
		return true
	}
	return ui.IsFleetManager() && ui.TenantID != nil && *ui.TenantID == tenantID
}

// CanAccessTenant reports whether the user may read the given tenant's data.
func (ui *UserInfo) CanAccessTenant(tenantID uuid.UUID) bool {
	if ui.IsSuperAdmin() {
		return true
	}
	return ui.TenantID != nil && *ui.TenantID == tenantID
}

// UserProfile represents the user profile stored in Redis
type UserProfile struct {
	CognitoID string     `json:"cognito_id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
}

// TokenSession represents a session stored in Redis
type TokenSession struct {
	UserProfile UserProfile `json:"user_profile"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsedAt  time.Time   `json:"last_used_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	SessionID   string      `json:"session_id"`
}

func (ts *TokenSession) IsExpired() bool {
	return time.Now().After(ts.ExpiresAt)
}

func (ts *TokenSession) UpdateLastUsed() {
	ts.LastUsedAt = time.Now()
}
