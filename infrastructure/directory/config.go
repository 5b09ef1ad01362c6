package directory

import (
	"fmt"
	"time"
)

// Config holds the connection settings of the LDAP directory adapter
type Config struct {
	DefaultScope string        // LDAP://<fqdn> used when a query names no scope; empty means the joined domain
	Port         int           // 389, or 636 with UseTLS
	UseTLS       bool          // ldaps
	DialTimeout  time.Duration // TCP connect and bind
	MaxPoolSize  int           // cached connections, one per domain

	// Simple bind; anonymous when BindDN is empty and Kerberos is not configured
	BindDN       string
	BindPassword string

	Kerberos KerberosConfig
}

// KerberosConfig enables a GSSAPI bind with a keytab or a credential cache
type KerberosConfig struct {
	Keytab     string
	User       string
	Realm      string
	CCache     string
	Krb5Config string // path to krb5.conf
}

// Enabled reports whether a GSSAPI bind should be used.
func (k KerberosConfig) Enabled() bool {
	return k.CCache != "" || (k.Keytab != "" && k.User != "")
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		Port:        389,
		DialTimeout: 10 * time.Second,
		MaxPoolSize: 16,
		Kerberos: KerberosConfig{
			Krb5Config: "/etc/krb5.conf",
		},
	}
}

// Validate checks the configuration for combinations no bind can use.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("ldap port must be between 1 and 65535, got: %d", c.Port)
	}
	if c.BindDN != "" && c.Kerberos.Enabled() {
		return fmt.Errorf("ldap bind dn and kerberos credentials are mutually exclusive")
	}
	if c.Kerberos.Keytab != "" && c.Kerberos.Realm == "" {
		return fmt.Errorf("kerberos keytab requires a realm")
	}
	return nil
}

func (c Config) scheme() string {
	if c.UseTLS {
		return "ldaps"
	}
	return "ldap"
}
