package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	domaindir "spmigrate/domain/directory"
)

// crossRef objects with systemFlags bit FLAG_CR_NTDS_DOMAIN (2) describe the domains of the forest
const forestDomainsFilter = "(&(objectClass=crossRef)(systemFlags:1.2.840.113556.1.4.803:=2))"

const trustedDomainFilter = "(objectClass=trustedDomain)"

// GetTrustedDomains lists the domains of the joined domain's forest together with the domains
// it trusts. The joined domain itself is included.
func (d *LDAPDirectory) GetTrustedDomains(ctx context.Context) ([]domaindir.TrustedDomain, error) {
	scope, err := d.defaultScope(ctx)
	if err != nil {
		return nil, err
	}
	host, _ := parseScope(scope)

	rootDSE, err := d.rootDSE(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("read rootDSE of %s: %w", host, err)
	}
	defaultNC := rootDSE.GetAttributeValue("defaultNamingContext")
	configNC := rootDSE.GetAttributeValue("configurationNamingContext")

	domains := newTrustSet()

	if configNC != "" {
		entries, err := d.search(ctx, "forest_domains", host, ldap.NewSearchRequest(
			"CN=Partitions,"+configNC,
			ldap.ScopeSingleLevel, ldap.NeverDerefAliases, 0, 0, false,
			forestDomainsFilter,
			[]string{"nETBIOSName", "dnsRoot", "nCName"},
			nil,
		))
		if err != nil {
			return nil, fmt.Errorf("list forest domains: %w", err)
		}
		for _, e := range entries {
			fqdn := e.GetAttributeValue("dnsRoot")
			if fqdn == "" {
				fqdn = baseDNToDomain(e.GetAttributeValue("nCName"))
			}
			domains.add(domaindir.TrustedDomain{
				FriendlyName: e.GetAttributeValue("nETBIOSName"),
				FQDN:         fqdn,
			})
		}
	}

	if defaultNC != "" {
		if sid, err := d.domainSID(ctx, host, defaultNC); err == nil {
			domains.add(domaindir.TrustedDomain{FQDN: baseDNToDomain(defaultNC), SID: sid})
		} else {
			d.logger.Warn("Could not read joined domain SID", "host", host, "error", err)
		}

		entries, err := d.search(ctx, "trusted_domains", host, ldap.NewSearchRequest(
			"CN=System,"+defaultNC,
			ldap.ScopeSingleLevel, ldap.NeverDerefAliases, 0, 0, false,
			trustedDomainFilter,
			[]string{"flatName", "trustPartner", "securityIdentifier"},
			nil,
		))
		if err != nil {
			return nil, fmt.Errorf("list trusted domains: %w", err)
		}
		for _, e := range entries {
			obj := convertEntry(e)
			domains.add(domaindir.TrustedDomain{
				FriendlyName: obj.Attribute("flatName"),
				FQDN:         obj.Attribute("trustPartner"),
				SID:          obj.Attribute("securityIdentifier"),
			})
		}
	}

	result := domains.list()
	d.logger.Directory("Discovered trusted domains", "host", host, "count", len(result))
	return result, nil
}

func (d *LDAPDirectory) rootDSE(ctx context.Context, host string) (*ldap.Entry, error) {
	entries, err := d.search(ctx, "root_dse", host, ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext", "configurationNamingContext"},
		nil,
	))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty rootDSE")
	}
	return entries[0], nil
}

func (d *LDAPDirectory) domainSID(ctx context.Context, host, baseDN string) (string, error) {
	entries, err := d.search(ctx, "domain_sid", host, ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=domain)",
		[]string{"objectSid"},
		nil,
	))
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("domain object %s not found", baseDN)
	}
	return convertEntry(entries[0]).Attribute("objectSid"), nil
}

// trustSet merges domain descriptions reported by several sources, keyed by DNS name.
type trustSet struct {
	order []string
	byKey map[string]*domaindir.TrustedDomain
}

func newTrustSet() *trustSet {
	return &trustSet{byKey: make(map[string]*domaindir.TrustedDomain)}
}

func (s *trustSet) add(td domaindir.TrustedDomain) {
	td.FQDN = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(td.FQDN), "."))
	td.FriendlyName = strings.TrimSpace(td.FriendlyName)
	if td.FQDN == "" {
		return
	}

	existing, ok := s.byKey[td.FQDN]
	if !ok {
		s.order = append(s.order, td.FQDN)
		s.byKey[td.FQDN] = &td
		return
	}
	if existing.FriendlyName == "" {
		existing.FriendlyName = td.FriendlyName
	}
	if existing.SID == "" {
		existing.SID = td.SID
	}
}

func (s *trustSet) list() []domaindir.TrustedDomain {
	out := make([]domaindir.TrustedDomain, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byKey[key])
	}
	return out
}
