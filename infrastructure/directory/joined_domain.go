package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	krbconfig "github.com/jcmturner/gokrb5/v8/config"

	"spmigrate/domain/principal"
)

// JoinedDomainSources are the places the host's domain is read from, in order
type JoinedDomainSources struct {
	LookupEnv  func(string) (string, bool)
	Krb5Config string
	Hostname   func() (string, error)
}

// DefaultJoinedDomainSources reads the process environment, krb5.conf and the host name.
func DefaultJoinedDomainSources(krb5Config string) JoinedDomainSources {
	if env, ok := os.LookupEnv("KRB5_CONFIG"); ok && env != "" && krb5Config == "" {
		krb5Config = env
	}
	if krb5Config == "" {
		krb5Config = "/etc/krb5.conf"
	}
	return JoinedDomainSources{
		LookupEnv:  os.LookupEnv,
		Krb5Config: krb5Config,
		Hostname:   os.Hostname,
	}
}

// GetJoinedDomain returns the DNS name of the domain the host belongs to. The result of the first
// call is kept for the lifetime of the adapter.
func (d *LDAPDirectory) GetJoinedDomain(ctx context.Context) (string, error) {
	d.joinedOnce.Do(func() {
		d.joinedDomain, d.joinedErr = DiscoverJoinedDomain(DefaultJoinedDomainSources(d.config.Kerberos.Krb5Config))
		if d.joinedErr == nil {
			d.logger.Directory("Discovered joined domain", "domain", d.joinedDomain)
		}
	})
	return d.joinedDomain, d.joinedErr
}

// DiscoverJoinedDomain finds the host's domain from USERDNSDOMAIN, the krb5.conf default realm, or
// the domain suffix of the host name. It fails with principal.ErrDirectoryUnavailable when none
// of them names a domain.
func DiscoverJoinedDomain(src JoinedDomainSources) (string, error) {
	if src.LookupEnv != nil {
		if domain, ok := src.LookupEnv("USERDNSDOMAIN"); ok && strings.TrimSpace(domain) != "" {
			return normalizeDomain(domain), nil
		}
	}

	if src.Krb5Config != "" {
		if cfg, err := krbconfig.Load(src.Krb5Config); err == nil && cfg.LibDefaults.DefaultRealm != "" {
			return normalizeDomain(cfg.LibDefaults.DefaultRealm), nil
		}
	}

	if src.Hostname != nil {
		if host, err := src.Hostname(); err == nil {
			if _, suffix, ok := strings.Cut(host, "."); ok && suffix != "" {
				return normalizeDomain(suffix), nil
			}
		}
	}

	return "", fmt.Errorf("host is not joined to a domain: %w", principal.ErrDirectoryUnavailable)
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
}
