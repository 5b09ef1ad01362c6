package migration

import (
	"fmt"
	"strings"
	"time"
)

// SourceVersion identifies the SharePoint release the content is migrated from
type SourceVersion int

const (
	SourceVersionUnknown SourceVersion = iota
	SourceVersionSP2010
	SourceVersionSP2013
	SourceVersionSP2016
	SourceVersionSP2019
	SourceVersionSPO
)

var sourceVersionNames = map[SourceVersion]string{
	SourceVersionUnknown: "Unknown",
	SourceVersionSP2010:  "SP2010",
	SourceVersionSP2013:  "SP2013",
	SourceVersionSP2016:  "SP2016",
	SourceVersionSP2019:  "SP2019",
	SourceVersionSPO:     "SPO",
}

func (v SourceVersion) String() string {
	if name, ok := sourceVersionNames[v]; ok {
		return name
	}
	return "Unknown"
}

// ParseSourceVersion parses a version name such as "SP2013" or "spo".
func ParseSourceVersion(s string) (SourceVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SourceVersionUnknown, nil
	}
	for v, name := range sourceVersionNames {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	return SourceVersionUnknown, fmt.Errorf("unknown source version %q", s)
}

// IsOnPremises reports whether the source farm lives in an Active Directory environment.
// Unknown is treated as on-premises so directory resolution stays available.
func (v SourceVersion) IsOnPremises() bool {
	return v != SourceVersionSPO
}

// TransformationConfig carries the options of one transformation run.
// It is a value object: build it once and pass it by value.
type TransformationConfig struct {
	Overwrite                   bool   // Overwrite target pages that already exist
	SkipTelemetry               bool   // Do not report run statistics
	KeepPageSpecificPermissions bool   // Copy item level permissions, which requires principal remapping
	UserMappingFile             string // Optional CSV of source,target principal overrides
	SourceVersion               SourceVersion

	SkipUserMapping      bool          // Pass every principal through untouched
	LDAPConnectionString string        // Overrides the domain discovered from the host, e.g. LDAP://contoso.com
	DirectoryTimeout     time.Duration // Per directory query
}

// DefaultDirectoryTimeout bounds a single directory query when none is configured.
const DefaultDirectoryTimeout = 30 * time.Second

// DefaultTransformationConfig returns the defaults used by the command line.
func DefaultTransformationConfig() TransformationConfig {
	return TransformationConfig{
		KeepPageSpecificPermissions: true,
		DirectoryTimeout:            DefaultDirectoryTimeout,
	}
}

// HasUserMappingFile reports whether an override file is configured.
func (c TransformationConfig) HasUserMappingFile() bool {
	return strings.TrimSpace(c.UserMappingFile) != ""
}

// LiveResolutionAllowed reports whether principals may be looked up in the source directory.
func (c TransformationConfig) LiveResolutionAllowed() bool {
	return !c.SkipUserMapping && c.SourceVersion.IsOnPremises()
}

// EffectiveDirectoryTimeout returns the configured timeout or the default.
func (c TransformationConfig) EffectiveDirectoryTimeout() time.Duration {
	if c.DirectoryTimeout <= 0 {
		return DefaultDirectoryTimeout
	}
	return c.DirectoryTimeout
}

// Validate checks the configuration for values no run can work with.
func (c TransformationConfig) Validate() error {
	if c.DirectoryTimeout < 0 {
		return fmt.Errorf("directory_timeout cannot be negative, got: %s", c.DirectoryTimeout)
	}
	if c.DirectoryTimeout > time.Hour {
		return fmt.Errorf("directory_timeout cannot exceed 1h, got: %s", c.DirectoryTimeout)
	}
	if c.LDAPConnectionString != "" && !strings.HasPrefix(strings.ToUpper(c.LDAPConnectionString), "LDAP://") {
		return fmt.Errorf("ldap_connection_string must start with LDAP://, got: %q", c.LDAPConnectionString)
	}
	if _, ok := sourceVersionNames[c.SourceVersion]; !ok {
		return fmt.Errorf("invalid source version: %d", c.SourceVersion)
	}
	return nil
}
