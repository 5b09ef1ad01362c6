package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"spmigrate/domain/contracts"
	"spmigrate/domain/sharepoint"
	"spmigrate/logging"
)

// ErrLayoutNotFound is returned when no page layout carries the requested name
var ErrLayoutNotFound = errors.New("page layout not found")

// PageLayoutInventory is the set of publishing page layouts of the source site.
type PageLayoutInventory struct {
	Layouts       []*sharepoint.LayoutDescriptor
	ByContentType map[string]int // associated content type name -> layout count
	CollectedAt   time.Time
}

// PageLayoutService reads publishing page layouts for the layout analyser.
type PageLayoutService struct {
	content contracts.ContentService
	logger  *logging.Logger
}

// NewPageLayoutService creates a page layout service over a content service.
func NewPageLayoutService(content contracts.ContentService) *PageLayoutService {
	return &PageLayoutService{
		content: content,
		logger:  logging.Default().WithComponent("page_layouts"),
	}
}

// GetInventory returns the layouts sorted by name with per content type counts.
func (s *PageLayoutService) GetInventory(ctx context.Context) (*PageLayoutInventory, error) {
	start := time.Now()

	layouts, err := s.content.GetPublishingPageLayouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get page layouts: %w", err)
	}

	sort.Slice(layouts, func(i, j int) bool {
		return strings.ToLower(layouts[i].Name) < strings.ToLower(layouts[j].Name)
	})

	inventory := &PageLayoutInventory{
		Layouts:       layouts,
		ByContentType: make(map[string]int),
		CollectedAt:   time.Now(),
	}
	for _, l := range layouts {
		ct := l.AssociatedContentType
		if ct == "" {
			ct = "(none)"
		}
		inventory.ByContentType[ct]++
	}

	s.logger.SharePoint("Collected page layouts",
		"count", len(layouts),
		"content_types", len(inventory.ByContentType),
		"duration_ms", time.Since(start).Milliseconds())
	return inventory, nil
}

// GetLayoutSource returns the markup of the layout with the given file name.
func (s *PageLayoutService) GetLayoutSource(ctx context.Context, name string) (string, error) {
	inventory, err := s.GetInventory(ctx)
	if err != nil {
		return "", err
	}

	for _, l := range inventory.Layouts {
		if strings.EqualFold(l.Name, name) {
			return s.content.GetFileContents(ctx, l.ServerRelativeURL)
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrLayoutNotFound)
}
