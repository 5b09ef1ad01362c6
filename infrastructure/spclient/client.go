package spclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/koltyakov/gosip"
	"github.com/koltyakov/gosip/api"

	"spmigrate/domain/migration"
	"spmigrate/domain/sharepoint"
	"spmigrate/logging"
)

// Source site reads never page beyond this many gallery items
const maxGalleryItems = 5000

// SharePointClient abstracts the SharePoint REST operations run against the source site.
type SharePointClient interface {
	GetPublishingPageLayouts(ctx context.Context) ([]*sharepoint.LayoutDescriptor, error)
	GetFileContents(ctx context.Context, serverRelativeURL string) (string, error)
	DetectSourceVersion(ctx context.Context) (migration.SourceVersion, error)
}

// SharePointClientImpl wraps the Gosip API client to provide SharePoint operations.
type SharePointClientImpl struct {
	gosipAPI      *api.SP            // Gosip API client for SharePoint operations
	authClient    *gosip.SPClient    // Authenticated client for raw HTTP calls
	defaultConfig *api.RequestConfig // Default request configuration
	timeout       time.Duration
	logger        *logging.Logger
}

// NewSharePointClient creates a SharePoint client over an authenticated Gosip client.
func NewSharePointClient(authClient *gosip.SPClient, timeout time.Duration) *SharePointClientImpl {
	return &SharePointClientImpl{
		gosipAPI:      api.NewSP(authClient),
		authClient:    authClient,
		defaultConfig: &api.RequestConfig{},
		timeout:       timeout,
		logger:        logging.Default().WithComponent("sharepoint_client"),
	}
}

// createRequestConfig creates a RequestConfig with the provided context, inheriting default configuration.
func (c *SharePointClientImpl) createRequestConfig(ctx context.Context) *api.RequestConfig {
	config := *c.defaultConfig
	config.Context = ctx
	return &config
}

func (c *SharePointClientImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// GetWeb reads the basic properties of the source web.
func (c *SharePointClientImpl) GetWeb(ctx context.Context) (*WebInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sp := c.gosipAPI.Conf(c.createRequestConfig(ctx))
	res, err := sp.Web().Select(WebFields).Get()
	if err != nil {
		return nil, fmt.Errorf("get web: %w", err)
	}

	var web WebInfo
	if err := json.Unmarshal(res.Normalized(), &web); err != nil {
		return nil, fmt.Errorf("decode web: %w", err)
	}
	return &web, nil
}

// GetPublishingPageLayouts lists the page layouts of the master page gallery.
func (c *SharePointClientImpl) GetPublishingPageLayouts(ctx context.Context) ([]*sharepoint.LayoutDescriptor, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	sp := c.gosipAPI.Conf(c.createRequestConfig(ctx))
	res, err := sp.Web().GetList(MasterPageGalleryURL).Items().
		Select(LayoutFields).
		Top(maxGalleryItems).
		Get()
	if err != nil {
		return nil, fmt.Errorf("get master page gallery items: %w", err)
	}

	layouts, err := DecodePageLayouts(res.Normalized())
	if err != nil {
		return nil, err
	}

	c.logger.SharePoint("Page layouts loaded",
		"count", len(layouts),
		"duration_ms", time.Since(start).Milliseconds())
	return layouts, nil
}

// GetFileContents downloads a file by server relative URL and returns it as text.
func (c *SharePointClientImpl) GetFileContents(ctx context.Context, serverRelativeURL string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sp := c.gosipAPI.Conf(c.createRequestConfig(ctx))
	data, err := sp.Web().GetFile(serverRelativeURL).Download()
	if err != nil {
		return "", fmt.Errorf("download %s: %w", serverRelativeURL, err)
	}

	c.logger.SharePoint("File downloaded", "url", serverRelativeURL, "bytes", len(data))
	return string(data), nil
}

// DetectSourceVersion reads the farm build from the response headers of the source site.
func (c *SharePointClientImpl) DetectSourceVersion(ctx context.Context) (migration.SourceVersion, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	siteURL := c.authClient.AuthCnfg.GetSiteURL()
	return NewVersionDetector(c.authClient).Detect(ctx, siteURL)
}
