package accounts

// Role is the user's role
type Role = string

const (
	// RoleStudent is the default role for new and imported accounts
	RoleStudent Role = "student"
	// RoleTeacher is a teaching staff role
	RoleTeacher Role = "teacher"
	// RoleAdmin is an administrative role (can provision accounts)
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// roleRank orders roles for minimum-role checks. Unknown roles rank below
// every valid role.
func roleRank(r Role) int {
	switch r {
	case RoleStudent:
		return 1
	case RoleTeacher:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// IsRoleAtLeast reports whether role meets or exceeds min in the role
// hierarchy: student < teacher < admin.
func IsRoleAtLeast(role, min Role) bool {
	return roleRank(role) >= roleRank(min) && roleRank(role) > 0
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleStudent,
		RoleTeacher,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role, reporting whether the value
// belongs to the closed set.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, IsValidRole(role)
}

// Destination identifies where a user should land after login or
// registration. It is decoupled from how routing is implemented; the web
// layer maps destinations to concrete paths.
type Destination string

const (
	// DestinationStudentHome is the safe default landing page
	DestinationStudentHome Destination = "student_home"
	// DestinationTeacherHome is the teacher landing page
	DestinationTeacherHome Destination = "teacher_home"
	// DestinationAdminHome is the admin landing page
	DestinationAdminHome Destination = "admin_home"
)

// RoleDestinations configures the role to destination table. Zero fields
// fall back to the package defaults.
type RoleDestinations struct {
	Student Destination
	Teacher Destination
	Admin   Destination
}

// RolePolicy resolves a destination for any role value. It never fails:
// unknown or missing roles resolve to the student destination.
type RolePolicy struct {
	destinations RoleDestinations
}

// NewRolePolicy builds a policy from an explicit destination table so tests
// and callers can supply alternate mappings without ambient configuration.
func NewRolePolicy(destinations RoleDestinations) *RolePolicy {
	if destinations.Student == "" {
		destinations.Student = DestinationStudentHome
	}
	if destinations.Teacher == "" {
		destinations.Teacher = DestinationTeacherHome
	}
	if destinations.Admin == "" {
		destinations.Admin = DestinationAdminHome
	}
	return &RolePolicy{destinations: destinations}
}

// DestinationFor maps a role to its configured destination. The switch is
// exhaustive over the closed role set; anything else lands on the student
// destination.
func (p *RolePolicy) DestinationFor(role Role) Destination {
	switch role {
	case RoleTeacher:
		return p.destinations.Teacher
	case RoleAdmin:
		return p.destinations.Admin
	case RoleStudent:
		return p.destinations.Student
	default:
		return p.destinations.Student
	}
}
