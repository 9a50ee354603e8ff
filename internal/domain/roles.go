package domain

type Role string

const (
	// User manages their own account and notes.
	RoleUser Role = "user"
	// Admin can additionally manage every user account.
	RoleAdmin Role = "admin"
)

func IsValidRole(r string) bool {
	return r == string(RoleUser) || r == string(RoleAdmin)
}

// ParseRole returns RoleUser for an empty string.
func ParseRole(r string) (Role, error) {
	if r == "" {
		return RoleUser, nil
	}
	if !IsValidRole(r) {
		return "", ErrInvalidRole(r)
	}
	return Role(r), nil
}

// HasRole reports whether r is one of allowed.
func HasRole(r Role, allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
