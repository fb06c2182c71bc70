package models

// Role is the access tier carried in access tokens.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
	RoleDoctor    Role = "doctor"
	RoleAdmin     Role = "admin"
)

// Roles lists every assignable role.
var Roles = []Role{RolePatient, RoleCaregiver, RoleDoctor, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole returns the role for s, defaulting to patient when s is empty.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return RolePatient, true
	}
	r := Role(s)
	return r, r.Valid()
}
