package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbifleet/go-tire-fleet-system/shared/models"
)

func TestResolveSetupGate(t *testing.T) {
	// Admin with incomplete setup is funneled to the welcome flow.
	assert.Equal(t, RedirectTo("/welcome"), Resolve(models.RoleAdmin, false, "/manage-vehicles"))
	assert.Equal(t, RedirectTo("/welcome"), Resolve(models.RoleAdmin, false, "/dashboard"))
	assert.Equal(t, RedirectTo("/welcome"), Resolve(models.RoleAdmin, false, "/reports"))
	assert.Equal(t, RedirectTo("/welcome"), Resolve(models.RoleAdmin, false, "/"))

	// Only the allow-list survives the gate.
	assert.Equal(t, Allow, Resolve(models.RoleAdmin, false, "/welcome"))
	assert.Equal(t, Allow, Resolve(models.RoleAdmin, false, "/alerts"))

	// The gate applies to admins only.
	assert.Equal(t, Allow, Resolve(models.RoleMechanic, false, "/inventory"))
	assert.Equal(t, Allow, Resolve(models.RoleAuditor, false, "/reports"))
}

func TestResolveReports(t *testing.T) {
	assert.Equal(t, Allow, Resolve(models.RoleAdmin, true, "/reports"))
	assert.Equal(t, Allow, Resolve(models.RoleAuditor, true, "/reports"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleMechanic, true, "/reports"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleSuperAdmin, true, "/reports"))
}

func TestResolvePlatformPaths(t *testing.T) {
	for _, path := range []string{"/super-admin", "/manage-plans"} {
		assert.Equal(t, Allow, Resolve(models.RoleSuperAdmin, true, path), path)
		assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleAdmin, true, path), path)
		assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleMechanic, true, path), path)
	}
}

func TestResolveRoot(t *testing.T) {
	assert.Equal(t, RedirectTo("/super-admin"), Resolve(models.RoleSuperAdmin, true, "/"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleAdmin, true, "/"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleMechanic, true, "/"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleAuditor, true, "/"))
}

func TestResolveWelcomeAfterSetup(t *testing.T) {
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleAdmin, true, "/welcome"))
	assert.Equal(t, RedirectTo("/dashboard"), Resolve(models.RoleMechanic, true, "/welcome"))
}

func TestResolveNeverErrorsNeverDenies(t *testing.T) {
	roles := []models.Role{models.RoleSuperAdmin, models.RoleAdmin, models.RoleMechanic, models.RoleAuditor}
	paths := []string{
		"/", "/dashboard", "/vehicles", "/inventory", "/lifecycle", "/alerts",
		"/maintenance", "/manage-vehicles", "/manage-brands", "/manage-tires",
		"/manage-suppliers", "/manage-customers", "/company-profile",
		"/collaborators", "/reports", "/super-admin", "/manage-plans", "/welcome",
		"/no-such-page",
	}
	for _, role := range roles {
		for _, setup := range []bool{false, true} {
			for _, path := range paths {
				d := Resolve(role, setup, path)
				assert.NotEqual(t, ActionDeny, d.Action, "%s %v %s", role, setup, path)
				if d.Action == ActionRedirect {
					assert.NotEmpty(t, d.Target)
				}
			}
		}
	}
}

func TestResolveOperationalPathsAllowed(t *testing.T) {
	assert.Equal(t, Allow, Resolve(models.RoleMechanic, true, "/lifecycle"))
	assert.Equal(t, Allow, Resolve(models.RoleAdmin, true, "/manage-vehicles"))
	assert.Equal(t, Allow, Resolve(models.RoleAuditor, true, "/dashboard"))
}
