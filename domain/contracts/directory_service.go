package contracts

import (
	"context"

	"spmigrate/domain/directory"
)

// DirectoryService is the narrow, read-only view of the source Active Directory that principal
// resolution depends on. Implementations must be safe for concurrent use.
type DirectoryService interface {
	// Query runs a search in the domain named by query.Scope.
	Query(ctx context.Context, query directory.Query) ([]directory.Object, error)

	// GetTrustedDomains lists the domains of the forest and the domains trusted by the joined domain.
	GetTrustedDomains(ctx context.Context) ([]directory.TrustedDomain, error)

	// GetJoinedDomain returns the DNS name of the domain the host is joined to.
	GetJoinedDomain(ctx context.Context) (string, error)
}
