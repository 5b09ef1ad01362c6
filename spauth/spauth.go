package spauth

import (
	"fmt"
	"os"

	"github.com/koltyakov/gosip"
	"github.com/koltyakov/gosip/auth/azurecert"
	"github.com/koltyakov/gosip/auth/ntlm"
)

// Strategy names the Gosip authentication strategy used for the source site
type Strategy string

const (
	StrategyNTLM      Strategy = "ntlm"      // on-premises farms
	StrategyAzureCert Strategy = "azurecert" // SharePoint Online sources
)

// Config holds the credentials of the source site
type Config struct {
	SiteURL string

	// NTLM (on-premises)
	Domain   string
	Username string
	Password string

	// Azure AD app-only certificate (SharePoint Online)
	TenantID     string
	ClientID     string
	CertPath     string
	CertPassword string
}

// LoadFromEnv reads the source site credentials without validating them.
func LoadFromEnv() Config {
	// Environment should already be loaded by main.go
	return Config{
		SiteURL:      os.Getenv("SP_SOURCE_URL"),
		Domain:       os.Getenv("SP_SOURCE_DOMAIN"),
		Username:     os.Getenv("SP_SOURCE_USERNAME"),
		Password:     os.Getenv("SP_SOURCE_PASSWORD"),
		TenantID:     os.Getenv("SP_TENANT_ID"),
		ClientID:     os.Getenv("SP_CLIENT_ID"),
		CertPath:     os.Getenv("SP_CERT_PATH"),
		CertPassword: os.Getenv("SP_CERT_PASSWORD"),
	}
}

// FromEnv reads and validates the source site credentials.
func FromEnv() (Config, error) {
	cfg := LoadFromEnv()
	return cfg, cfg.Validate()
}

// Strategy picks app-only certificate auth when it is configured, NTLM otherwise.
func (c Config) Strategy() Strategy {
	if c.TenantID != "" && c.ClientID != "" && c.CertPath != "" {
		return StrategyAzureCert
	}
	return StrategyNTLM
}

// Validate checks that the selected strategy has what it needs.
func (c Config) Validate() error {
	if c.SiteURL == "" {
		return fmt.Errorf("missing required configuration: SP_SOURCE_URL")
	}
	if c.Strategy() == StrategyNTLM && c.Username == "" {
		return fmt.Errorf("missing required configuration: SP_SOURCE_USERNAME (or SP_TENANT_ID, SP_CLIENT_ID, SP_CERT_PATH)")
	}
	return nil
}

// NewClient creates an authenticated Gosip client for the source site.
func NewClient(cfg Config) (*gosip.SPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy() {
	case StrategyAzureCert:
		ac := &azurecert.AuthCnfg{
			SiteURL:  cfg.SiteURL,
			TenantID: cfg.TenantID,
			ClientID: cfg.ClientID,
			CertPath: cfg.CertPath,
			CertPass: cfg.CertPassword,
		}
		return &gosip.SPClient{AuthCnfg: ac}, nil
	default:
		ac := &ntlm.AuthCnfg{
			SiteURL:  cfg.SiteURL,
			Domain:   cfg.Domain,
			Username: cfg.Username,
			Password: cfg.Password,
		}
		return &gosip.SPClient{AuthCnfg: ac}, nil
	}
}
