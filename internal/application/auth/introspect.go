package auth

import "github.com/evgeniivall/notes-auth-micro/internal/domain"

// Introspect returns the identity of a user already resolved by the auth guard.
func (s *Service) Introspect(u domain.User) Identity {
	return Identity{ID: u.ID, Role: u.Role}
}
