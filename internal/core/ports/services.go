package ports

import "classrelay/internal/core/domain"

// TokenVerifier is the credential contract of the connection gate. It is
// identical across all three namespaces.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}
