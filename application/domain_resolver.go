package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"spmigrate/domain/contracts"
	"spmigrate/domain/directory"
	"spmigrate/domain/migration"
	"spmigrate/domain/principal"
	"spmigrate/logging"
)

// LdapScheme prefixes every connection string built by the resolver
const LdapScheme = "LDAP://"

const maxFQDNLength = 253

// singleflight keys of the non-domain lookups; '|' cannot occur in a domain name
const (
	trustedDomainsKey = "|trusted-domains"
	currentDomainKey  = "|current-domain"
)

// DomainResolver translates friendly (NetBIOS) domain names to DNS names and builds LDAP
// connection strings. Lookups are cached for the lifetime of the instance; failed lookups are not.
type DomainResolver struct {
	directory contracts.DirectoryService
	config    migration.TransformationConfig
	logger    *logging.Logger

	mu            sync.RWMutex
	domains       map[string]directory.DomainContext // lower(friendly) -> context
	trusted       []directory.TrustedDomain
	trustedLoaded bool
	currentDomain string
	lookups       singleflight.Group
}

// NewDomainResolver creates a resolver over the given directory. directory may be nil when the host has
// no directory access; every lookup then fails with principal.ErrDirectoryUnavailable.
func NewDomainResolver(dir contracts.DirectoryService, config migration.TransformationConfig) *DomainResolver {
	return &DomainResolver{
		directory: dir,
		config:    config,
		logger:    logging.Default().WithComponent("domain_resolver"),
		domains:   make(map[string]directory.DomainContext),
	}
}

// GetCurrentComputerDomain returns the DNS name of the domain the host is joined to.
func (r *DomainResolver) GetCurrentComputerDomain(ctx context.Context) (string, error) {
	r.mu.RLock()
	current := r.currentDomain
	r.mu.RUnlock()
	if current != "" {
		return current, nil
	}

	if r.directory == nil {
		return "", fmt.Errorf("get current computer domain: %w", principal.ErrDirectoryUnavailable)
	}

	v, err, _ := r.shared(ctx, currentDomainKey, func(ctx context.Context) (any, error) {
		domain, err := r.directory.GetJoinedDomain(ctx)
		if err != nil {
			if errors.Is(err, principal.ErrDirectoryUnavailable) {
				return "", err
			}
			return "", errors.Join(principal.ErrDirectoryUnavailable, err)
		}
		domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
		if domain == "" {
			return "", principal.ErrDirectoryUnavailable
		}

		r.mu.Lock()
		r.currentDomain = domain
		r.mu.Unlock()
		return domain, nil
	})
	if err != nil {
		r.logger.Warn("Host domain unavailable", "error", err)
		return "", fmt.Errorf("get current computer domain: %w", err)
	}
	return v.(string), nil
}

// ResolveFriendlyDomainToLdap returns the DNS name of a friendly domain name. Names that already
// contain a dot are treated as DNS names and only validated.
func (r *DomainResolver) ResolveFriendlyDomainToLdap(ctx context.Context, friendly string) (string, error) {
	friendly = strings.TrimSpace(friendly)
	if friendly == "" {
		return "", fmt.Errorf("resolve domain: empty name: %w", principal.ErrInvalidDomain)
	}

	if strings.Contains(friendly, ".") {
		if err := ValidateFQDN(friendly); err != nil {
			return "", err
		}
		return friendly, nil
	}

	key := strings.ToLower(friendly)

	r.mu.RLock()
	cached, ok := r.domains[key]
	r.mu.RUnlock()
	if ok {
		return cached.FQDN, nil
	}

	v, err, shared := r.shared(ctx, key, func(ctx context.Context) (any, error) {
		r.mu.RLock()
		cached, ok := r.domains[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		start := time.Now()
		resolved, err := r.lookupFriendlyDomain(ctx, friendly)
		if err != nil {
			return directory.DomainContext{}, err
		}

		r.mu.Lock()
		r.domains[key] = resolved
		r.mu.Unlock()

		r.logger.Directory("Resolved friendly domain",
			"friendly", friendly,
			"fqdn", resolved.FQDN,
			"duration_ms", time.Since(start).Milliseconds())
		return resolved, nil
	})
	if err != nil {
		r.logger.Warn("Failed to resolve friendly domain", "friendly", friendly, "shared", shared, "error", err)
		return "", fmt.Errorf("resolve domain %q: %w", friendly, err)
	}
	return v.(directory.DomainContext).FQDN, nil
}

func (r *DomainResolver) lookupFriendlyDomain(ctx context.Context, friendly string) (directory.DomainContext, error) {
	trusted, err := r.trustedDomains(ctx)
	if err != nil {
		return directory.DomainContext{}, err
	}

	for _, d := range trusted {
		if strings.EqualFold(d.FriendlyName, friendly) {
			return directory.DomainContext{FriendlyName: d.FriendlyName, FQDN: d.FQDN}, nil
		}
	}

	// Trusts without a NetBIOS name still match on their first DNS label
	for _, d := range trusted {
		if d.FriendlyName == "" && strings.EqualFold(firstLabel(d.FQDN), friendly) {
			return directory.DomainContext{FriendlyName: strings.ToUpper(friendly), FQDN: d.FQDN}, nil
		}
	}

	return directory.DomainContext{}, fmt.Errorf("domain %q is not known to the directory: %w", friendly, principal.ErrInvalidDomain)
}

// TrustedDomains returns the domains reachable from the joined domain, fetched once per resolver.
func (r *DomainResolver) TrustedDomains(ctx context.Context) ([]directory.TrustedDomain, error) {
	trusted, err := r.trustedDomains(ctx)
	if err != nil {
		return nil, err
	}
	return append([]directory.TrustedDomain(nil), trusted...), nil
}

// trustedDomains fetches the trust list once per resolver.
func (r *DomainResolver) trustedDomains(ctx context.Context) ([]directory.TrustedDomain, error) {
	r.mu.RLock()
	if r.trustedLoaded {
		trusted := r.trusted
		r.mu.RUnlock()
		return trusted, nil
	}
	r.mu.RUnlock()

	if r.directory == nil {
		return nil, principal.ErrDirectoryUnavailable
	}

	v, err, _ := r.shared(ctx, trustedDomainsKey, func(ctx context.Context) (any, error) {
		r.mu.RLock()
		if r.trustedLoaded {
			trusted := r.trusted
			r.mu.RUnlock()
			return trusted, nil
		}
		r.mu.RUnlock()

		trusted, err := r.directory.GetTrustedDomains(ctx)
		if err != nil {
			return nil, fmt.Errorf("list trusted domains: %w", err)
		}

		r.mu.Lock()
		r.trusted = trusted
		r.trustedLoaded = true
		r.mu.Unlock()

		r.logger.Directory("Loaded trusted domains", "count", len(trusted))
		return trusted, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]directory.TrustedDomain), nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context detached from any one
// caller's cancellation and bounded by the directory timeout; each caller waits on its own ctx.
func (r *DomainResolver) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	ch := r.lookups.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.EffectiveDirectoryTimeout())
		defer cancel()
		return fn(lookupCtx)
	})

	select {
	case <-ctx.Done():
		return nil, errors.Join(principal.ErrDirectoryQuery, ctx.Err()), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}

// LdapConnectionStringForDomain resolves a friendly or DNS domain name to its connection string.
func (r *DomainResolver) LdapConnectionStringForDomain(ctx context.Context, domain string) (string, error) {
	fqdn, err := r.ResolveFriendlyDomainToLdap(ctx, domain)
	if err != nil {
		return "", err
	}
	return BuildLdapConnectionString(fqdn)
}

// DefaultLdapConnectionString returns the configured connection string, or the one of the domain
// the host is joined to.
func (r *DomainResolver) DefaultLdapConnectionString(ctx context.Context) (string, error) {
	if r.config.LDAPConnectionString != "" {
		return r.config.LDAPConnectionString, nil
	}

	current, err := r.GetCurrentComputerDomain(ctx)
	if err != nil {
		return "", err
	}
	return BuildLdapConnectionString(current)
}

// DomainForSID returns the trusted domain whose domain SID prefixes sid. ok is false when the SID
// is not domain relative or belongs to no known domain.
func (r *DomainResolver) DomainForSID(ctx context.Context, sid string) (directory.TrustedDomain, bool, error) {
	domainSID, ok := principal.DomainSID(sid)
	if !ok {
		return directory.TrustedDomain{}, false, nil
	}

	trusted, err := r.trustedDomains(ctx)
	if err != nil {
		return directory.TrustedDomain{}, false, err
	}

	for _, d := range trusted {
		if d.SID != "" && strings.EqualFold(d.SID, domainSID) {
			return d, true, nil
		}
	}
	return directory.TrustedDomain{}, false, nil
}

// BuildLdapConnectionString returns "LDAP://<fqdn>" for a well-formed DNS domain name.
func BuildLdapConnectionString(fqdn string) (string, error) {
	fqdn = strings.TrimSpace(fqdn)
	if err := ValidateFQDN(fqdn); err != nil {
		return "", err
	}
	return LdapScheme + fqdn, nil
}

// ValidateFQDN checks that name is a syntactically valid DNS domain name.
func ValidateFQDN(name string) error {
	if name == "" {
		return fmt.Errorf("empty domain name: %w", principal.ErrInvalidDomain)
	}
	if len(name) > maxFQDNLength {
		return fmt.Errorf("domain name longer than %d characters: %w", maxFQDNLength, principal.ErrInvalidDomain)
	}

	for _, label := range strings.Split(name, ".") {
		if err := validateLabel(label); err != nil {
			return fmt.Errorf("domain %q: %s: %w", name, err, principal.ErrInvalidDomain)
		}
	}
	return nil
}

func validateLabel(label string) error {
	if label == "" {
		return errors.New("empty label")
	}
	if len(label) > 63 {
		return fmt.Errorf("label %q longer than 63 characters", label)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q starts or ends with a hyphen", label)
	}
	for _, c := range label {
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum && c != '-' {
			return fmt.Errorf("label %q contains %q", label, c)
		}
	}
	return nil
}

// ConnectionStringDomain extracts the DNS name from an "LDAP://host[/dn]" connection string.
func ConnectionStringDomain(connectionString string) string {
	s := strings.TrimSpace(connectionString)
	if len(s) >= len(LdapScheme) && strings.EqualFold(s[:len(LdapScheme)], LdapScheme) {
		s = s[len(LdapScheme):]
	}
	s, _, _ = strings.Cut(s, "/")
	s, _, _ = strings.Cut(s, ":")
	return s
}

func firstLabel(fqdn string) string {
	label, _, _ := strings.Cut(fqdn, ".")
	return label
}
