package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardOperationalWriteAssetLimit(t *testing.T) {
	tenant := &Tenant{Status: TenantStatusActive, AssetLimit: 5, CurrentAssets: 4}

	assert.NoError(t, tenant.GuardOperationalWrite(1))

	tenant.CurrentAssets = 5
	assert.ErrorIs(t, tenant.GuardOperationalWrite(1), ErrAssetLimitExceeded)

	// Non-creating writes are not limited by quota.
	assert.NoError(t, tenant.GuardOperationalWrite(0))
}

func TestGuardOperationalWriteReadOnlyStatuses(t *testing.T) {
	for _, status := range []TenantStatus{TenantStatusPaused, TenantStatusCancelled, TenantStatusExpired} {
		tenant := &Tenant{Status: status, AssetLimit: 10, CurrentAssets: 0}
		assert.ErrorIs(t, tenant.GuardOperationalWrite(1), ErrTenantReadOnly, string(status))
		assert.ErrorIs(t, tenant.GuardOperationalWrite(0), ErrTenantReadOnly, string(status))
	}
}

func TestHasCapacity(t *testing.T) {
	tenant := &Tenant{AssetLimit: 3, CurrentAssets: 2}
	assert.True(t, tenant.HasCapacity(1))
	assert.False(t, tenant.HasCapacity(2))
}

func TestRoleIsValid(t *testing.T) {
	for _, r := range []Role{RoleSuperAdmin, RoleAdmin, RoleMechanic, RoleAuditor} {
		assert.True(t, r.IsValid(), string(r))
	}
	assert.False(t, Role("DRIVER").IsValid())
	assert.False(t, Role("").IsValid())
}
