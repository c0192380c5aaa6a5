package routing

import "github.com/dbifleet/go-tire-fleet-system/shared/models"

// Action is the kind of navigation decision the router can produce.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
	ActionDeny     Action = "deny"
)

// Decision is the outcome of resolving a navigation request. Target is only
// set for redirects.
type Decision struct {
	Action Action `json:"action"`
	Target string `json:"target,omitempty"`
}

// Allow is the decision that lets the request through unchanged.
var Allow = Decision{Action: ActionAllow}

// RedirectTo builds a redirect decision.
func RedirectTo(path string) Decision {
	return Decision{Action: ActionRedirect, Target: path}
}

// Deny is the decision that blocks the request outright. The policy below
// never produces it (unauthorized access always redirects), but the type
// keeps the contract complete for future rules.
var Deny = Decision{Action: ActionDeny}

// Well-known paths referenced by the policy.
const (
	PathRoot        = "/"
	PathWelcome     = "/welcome"
	PathAlerts      = "/alerts"
	PathDashboard   = "/dashboard"
	PathReports     = "/reports"
	PathSuperAdmin  = "/super-admin"
	PathManagePlans = "/manage-plans"
)

// Resolve maps (role, tenant setup state, requested path) to a navigation
// decision. It is a pure function with no side effects and it never errors:
// every input produces a decision, and unauthorized access resolves to a
// redirect rather than a hard failure.
//
// The rules form an ordered table; the first match wins:
//  1. An ADMIN whose tenant has not completed setup may only reach /welcome
//     and /alerts; everything else redirects to /welcome.
//  2. /reports requires ADMIN or AUDITOR.
//  3. /super-admin and /manage-plans require SUPER_ADMIN.
//  4. The root path lands on the role's home screen.
//  5. /welcome after setup redirects to /dashboard.
//  6. Any other path is allowed; unrecognized paths are a UI catch-all
//     concern, not an authorization one.
func Resolve(role models.Role, setupComplete bool, path string) Decision {
	if role == models.RoleAdmin && !setupComplete {
		switch path {
		case PathWelcome, PathAlerts:
			return Allow
		}
		return RedirectTo(PathWelcome)
	}

	switch path {
	case PathReports:
		if role == models.RoleAdmin || role == models.RoleAuditor {
			return Allow
		}
		return RedirectTo(PathDashboard)

	case PathSuperAdmin, PathManagePlans:
		if role == models.RoleSuperAdmin {
			return Allow
		}
		return RedirectTo(PathDashboard)

	case PathRoot:
		if role == models.RoleSuperAdmin {
			return RedirectTo(PathSuperAdmin)
		}
		return RedirectTo(PathDashboard)

	case PathWelcome:
		return RedirectTo(PathDashboard)
	}

	return Allow
}

// HomePath returns the screen the root path resolves to for a role.
func HomePath(role models.Role) string {
	if role == models.RoleSuperAdmin {
		return PathSuperAdmin
	}
	return PathDashboard
}
