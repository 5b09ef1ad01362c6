package spclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spmigrate/domain/migration"
	"spmigrate/logging"
)

// VersionHeader carries the farm build on every SharePoint response
const VersionHeader = "MicrosoftSharePointTeamServices"

// First SharePoint 2019 build; 16.x builds below it are SharePoint 2016
const sp2019MinBuild = 10337

var onlineHostSuffixes = []string{
	".sharepoint.com",
	".sharepoint.us",
	".sharepoint-mil.us",
	".sharepoint.de",
	".sharepoint.cn",
}

// HTTPExecutor sends authenticated requests. *gosip.SPClient implements it.
type HTTPExecutor interface {
	Execute(req *http.Request) (*http.Response, error)
}

// VersionDetector identifies the SharePoint release of a site
type VersionDetector struct {
	client HTTPExecutor
	logger *logging.Logger
}

// NewVersionDetector creates a detector that sends its probe through client.
func NewVersionDetector(client HTTPExecutor) *VersionDetector {
	return &VersionDetector{
		client: client,
		logger: logging.Default().WithComponent("version_detector"),
	}
}

// Detect returns the release of the site at siteURL. SharePoint Online hosts are recognised
// without a request.
func (d *VersionDetector) Detect(ctx context.Context, siteURL string) (migration.SourceVersion, error) {
	if IsSharePointOnlineURL(siteURL) {
		return migration.SourceVersionSPO, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteEndpoint(siteURL, "_api/web")+"?$select=Id", nil)
	if err != nil {
		return migration.SourceVersionUnknown, fmt.Errorf("build version probe: %w", err)
	}
	req.Header.Set("Accept", "application/json;odata=nometadata")

	resp, err := d.client.Execute(req)
	if err != nil {
		return migration.SourceVersionUnknown, fmt.Errorf("probe %s: %w", siteURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	header := resp.Header.Get(VersionHeader)
	if header == "" {
		return migration.SourceVersionUnknown, fmt.Errorf("probe %s: response has no %s header (status %d)", siteURL, VersionHeader, resp.StatusCode)
	}

	version, err := ParseVersionHeader(header)
	if err != nil {
		return migration.SourceVersionUnknown, err
	}

	d.logger.SharePoint("Detected source version", "site_url", siteURL, "header", header, "version", version.String())
	return version, nil
}

// ParseVersionHeader maps a build number such as 15.0.0.4420 to its release.
func ParseVersionHeader(header string) (migration.SourceVersion, error) {
	build := strings.TrimSpace(header)
	if i := strings.IndexAny(build, ", "); i >= 0 {
		build = build[:i]
	}

	parts := strings.Split(build, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return migration.SourceVersionUnknown, fmt.Errorf("invalid SharePoint build %q", header)
	}

	switch major {
	case 14:
		return migration.SourceVersionSP2010, nil
	case 15:
		return migration.SourceVersionSP2013, nil
	case 16:
		if len(parts) < 4 {
			return migration.SourceVersionSP2016, nil
		}
		minor, err := strconv.Atoi(parts[3])
		if err != nil {
			return migration.SourceVersionUnknown, fmt.Errorf("invalid SharePoint build %q", header)
		}
		if minor >= sp2019MinBuild {
			return migration.SourceVersionSP2019, nil
		}
		return migration.SourceVersionSP2016, nil
	default:
		return migration.SourceVersionUnknown, fmt.Errorf("unsupported SharePoint build %q", header)
	}
}

// IsSharePointOnlineURL reports whether siteURL is hosted in SharePoint Online.
func IsSharePointOnlineURL(siteURL string) bool {
	u, err := url.Parse(siteURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range onlineHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
