package contracts

import (
	"context"

	"spmigrate/domain/sharepoint"
)

// ContentService reads publishing content from the source site. The page layout analyser
// consumes it; principal resolution never calls it.
type ContentService interface {
	GetPublishingPageLayouts(ctx context.Context) ([]*sharepoint.LayoutDescriptor, error)
	GetFileContents(ctx context.Context, serverRelativeURL string) (string, error)
}
