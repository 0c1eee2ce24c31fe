package accounts

import (
	"maps"

	"github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be used
// with go-template's WithGlobalData option for authentication-related template functionality.
//
// Usage:
//
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(accounts.TemplateHelpers()),
//	)
//
// In templates, you can then use:
//
//	{% if current_user %}
//	{% if current_user|has_role:"admin" %}
//	{{ csrf_field }}
//	{{ csrf_token }}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		// Authentication helper functions
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_at_least":      isAtLeast,

		// Role constants for easy template access
		"roles": map[string]string{
			"student": RoleStudent,
			"teacher": RoleTeacher,
			"admin":   RoleAdmin,
		},
	}

	// add CSRF template helpers
	maps.Copy(helpers, csrf.CSRFTemplateHelpers())

	return helpers
}

// TemplateHelpersWithUser returns template helpers with a specific user set as current_user.
// This is useful when you want to inject the current user directly into the global context.
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with user data extracted
// from the router context, plus CSRF token helpers when a token is available.
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	// Merge CSRF helpers with router context for actual token values
	for key, value := range csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey) {
		helpers[key] = value
	}

	return helpers
}

// GetTemplateUser is a convenience function to extract user data from router
// context for template usage.
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	if user == nil {
		return false
	}

	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case AuthClaims:
		return u != nil && u.UserID() != ""
	case map[string]any:
		// Handle JSON-converted user objects
		return len(u) > 0
	default:
		return false
	}
}

// hasRole checks if the user has the specified role
func hasRole(user any, role string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Role == role
	case User:
		return u.Role == role
	case AuthClaims:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case map[string]any:
		// Handle JSON-converted user objects
		if userRole, exists := u["user_role"]; exists {
			if roleStr, ok := userRole.(string); ok {
				return roleStr == role
			}
		}
		return false
	default:
		return false
	}
}

// isAtLeast checks if the user's role is at least the minimum required level
func isAtLeast(user any, minRole string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return IsRoleAtLeast(u.Role, minRole)
	case User:
		return IsRoleAtLeast(u.Role, minRole)
	case AuthClaims:
		if u == nil {
			return false
		}
		return u.IsAtLeast(minRole)
	case map[string]any:
		// Handle JSON-converted user objects
		if userRole, exists := u["user_role"]; exists {
			if roleStr, ok := userRole.(string); ok {
				return IsRoleAtLeast(roleStr, minRole)
			}
		}
		return false
	default:
		return false
	}
}
