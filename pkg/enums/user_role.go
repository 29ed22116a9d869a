package enums

// UserRole is the platform-wide role carried in access tokens.
type UserRole string

const (
	UserRoleInnovator UserRole = "innovator"
	UserRoleInvestor  UserRole = "investor"
	UserRoleAdmin     UserRole = "admin"
)

var validUserRoles = []UserRole{UserRoleInnovator, UserRoleInvestor, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return contains(validUserRoles, r) }

// SelfServe reports whether the role may be chosen at public registration.
func (r UserRole) SelfServe() bool {
	return r == UserRoleInnovator || r == UserRoleInvestor
}

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", validUserRoles, value)
}
