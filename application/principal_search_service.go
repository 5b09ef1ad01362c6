package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spmigrate/domain/contracts"
	"spmigrate/domain/directory"
	"spmigrate/domain/migration"
	"spmigrate/domain/principal"
	"spmigrate/logging"
)

// PrincipalSearchService looks up users and groups in the source directory and returns the
// identity SharePoint Online knows them by.
type PrincipalSearchService struct {
	directory contracts.DirectoryService
	domains   *DomainResolver
	config    migration.TransformationConfig
	logger    *logging.Logger
}

// NewPrincipalSearchService creates a search service over dir, routing queries with domains.
func NewPrincipalSearchService(
	dir contracts.DirectoryService,
	domains *DomainResolver,
	config migration.TransformationConfig,
) *PrincipalSearchService {
	return &PrincipalSearchService{
		directory: dir,
		domains:   domains,
		config:    config,
		logger:    logging.Default().WithComponent("principal_search"),
	}
}

// SearchForUPN resolves identifier (account, DOMAIN\account or SID) to a UPN for users, or to the
// canonical group identity for groups. An empty result means not found.
func (s *PrincipalSearchService) SearchForUPN(ctx context.Context, accountType principal.AccountType, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", nil
	}
	if s.directory == nil {
		return "", fmt.Errorf("search %s %q: %w", accountType, identifier, principal.ErrDirectoryUnavailable)
	}

	if principal.IsSID(identifier) {
		return s.searchBySID(ctx, accountType, principal.NormalizeSID(identifier))
	}
	return s.searchByName(ctx, accountType, identifier)
}

func (s *PrincipalSearchService) searchBySID(ctx context.Context, accountType principal.AccountType, sid string) (string, error) {
	if principal.IsEveryoneSID(sid) {
		return principal.EveryoneClaim, nil
	}
	if principal.IsWellKnownSID(sid) {
		name, _ := principal.WellKnownSIDName(sid)
		s.logger.Directory("Well-known SID has no directory object", "sid", sid, "name", name)
		return "", nil
	}

	scope, err := s.scopeForSID(ctx, sid)
	if err != nil {
		return "", err
	}

	obj, found, err := s.findOne(ctx, scope, sidFilter(accountType, sid, true))
	if err != nil || !found {
		return "", err
	}

	if obj.HasObjectClass(foreignSecurityPrincipalClass) {
		return s.followForeignPrincipal(ctx, accountType, obj, scope)
	}
	return canonicalIdentity(accountType, obj, ConnectionStringDomain(scope)), nil
}

func (s *PrincipalSearchService) searchByName(ctx context.Context, accountType principal.AccountType, name string) (string, error) {
	id := principal.ParseIdentity(name, accountType, false)

	var scope string
	var err error
	if id.Domain != "" {
		scope, err = s.domains.LdapConnectionStringForDomain(ctx, id.Domain)
		if errors.Is(err, principal.ErrInvalidDomain) {
			// NT AUTHORITY, BUILTIN and unknown domains have nothing to look up
			s.logger.Directory("Domain not resolvable, principal not found", "identifier", name, "domain", id.Domain)
			return "", nil
		}
	} else {
		scope, err = s.domains.DefaultLdapConnectionString(ctx)
	}
	if err != nil {
		return "", err
	}

	obj, found, err := s.findOne(ctx, scope, accountNameFilter(accountType, id.Account))
	if err != nil || !found {
		return "", err
	}
	return canonicalIdentity(accountType, obj, ConnectionStringDomain(scope)), nil
}

// followForeignPrincipal resolves a foreign security principal in the domain that issued its SID.
// When no trusted domain reports that SID, the trusted domains whose SID is unknown are tried.
// The principal found there is not followed again.
func (s *PrincipalSearchService) followForeignPrincipal(ctx context.Context, accountType principal.AccountType, fsp directory.Object, fromScope string) (string, error) {
	sid := foreignPrincipalSID(fsp)
	if sid == "" {
		return "", nil
	}

	owner, ok, err := s.domains.DomainForSID(ctx, sid)
	if err != nil {
		return "", err
	}

	candidates := []directory.TrustedDomain{owner}
	if !ok {
		trusted, err := s.domains.TrustedDomains(ctx)
		if err != nil {
			return "", err
		}
		candidates = candidates[:0]
		for _, d := range trusted {
			if d.SID == "" && !strings.EqualFold(d.FQDN, ConnectionStringDomain(fromScope)) {
				candidates = append(candidates, d)
			}
		}
	}

	for _, d := range candidates {
		scope, err := BuildLdapConnectionString(d.FQDN)
		if err != nil {
			continue
		}
		obj, found, err := s.findOne(ctx, scope, sidFilter(accountType, sid, false))
		if err != nil {
			return "", err
		}
		if found {
			return canonicalIdentity(accountType, obj, d.FQDN), nil
		}
	}

	s.logger.Directory("Foreign principal not found in any trusted domain", "sid", sid, "dn", fsp.DN)
	return "", nil
}

func (s *PrincipalSearchService) scopeForSID(ctx context.Context, sid string) (string, error) {
	owner, ok, err := s.domains.DomainForSID(ctx, sid)
	if err != nil {
		return "", err
	}
	if ok {
		return BuildLdapConnectionString(owner.FQDN)
	}
	return s.domains.DefaultLdapConnectionString(ctx)
}

// findOne runs a bounded query and returns its first entry.
func (s *PrincipalSearchService) findOne(ctx context.Context, scope, filter string) (directory.Object, bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.config.EffectiveDirectoryTimeout())
	defer cancel()

	start := time.Now()
	objects, err := s.directory.Query(queryCtx, directory.Query{
		Scope:      scope,
		Filter:     filter,
		Attributes: principalAttributes,
		SizeLimit:  2,
	})
	duration := time.Since(start)
	if err != nil {
		if !errors.Is(err, principal.ErrDirectoryQuery) {
			err = errors.Join(principal.ErrDirectoryQuery, err)
		}
		s.logger.Warn("Directory query failed",
			"scope", scope,
			"filter", filter,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return directory.Object{}, false, fmt.Errorf("query %s: %w", scope, err)
	}

	s.logger.Directory("Directory query completed",
		"scope", scope,
		"filter", filter,
		"results", len(objects),
		"duration_ms", duration.Milliseconds())

	if len(objects) == 0 {
		return directory.Object{}, false, nil
	}
	if len(objects) > 1 {
		s.logger.Warn("Directory query matched several objects, using the first", "scope", scope, "filter", filter, "dn", objects[0].DN)
	}
	return objects[0], true, nil
}

// canonicalIdentity picks the SharePoint Online identity of a directory object. Users are known by
// their UPN only; groups fall back to mail, then to sAMAccountName@domain.
func canonicalIdentity(accountType principal.AccountType, obj directory.Object, fqdn string) string {
	if upn := strings.TrimSpace(obj.Attribute("userPrincipalName")); upn != "" {
		return upn
	}
	if accountType == principal.AccountTypeUser {
		return ""
	}
	if mail := strings.TrimSpace(obj.Attribute("mail")); mail != "" {
		return mail
	}
	if sam := strings.TrimSpace(obj.Attribute("sAMAccountName")); sam != "" && fqdn != "" {
		return sam + "@" + strings.ToLower(fqdn)
	}
	return ""
}

// foreignPrincipalSID reads the SID of a foreign security principal from its objectSid or,
// failing that, from its CN, which AD sets to the SID.
func foreignPrincipalSID(obj directory.Object) string {
	if sid := obj.Attribute("objectSid"); principal.IsSID(sid) {
		return principal.NormalizeSID(sid)
	}
	if cn := obj.Attribute("cn"); principal.IsSID(cn) {
		return principal.NormalizeSID(cn)
	}
	rdn, _, _ := strings.Cut(obj.DN, ",")
	if name, value, ok := strings.Cut(rdn, "="); ok && strings.EqualFold(strings.TrimSpace(name), "CN") && principal.IsSID(value) {
		return principal.NormalizeSID(value)
	}
	return ""
}
