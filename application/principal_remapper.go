package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spmigrate/domain/events"
	"spmigrate/domain/migration"
	"spmigrate/domain/principal"
	"spmigrate/logging"
)

// MappingTableLoader loads the user mapping file configured for a run
type MappingTableLoader interface {
	LoadTable(path string) (*principal.MappingTable, error)
}

// PrincipalRemapper turns source farm principals into their SharePoint Online equivalents.
// Mapping file overrides win over directory lookups; anything left unresolved is passed through.
type PrincipalRemapper struct {
	config    migration.TransformationConfig
	mapping   *principal.MappingTable
	search    *PrincipalSearchService
	publisher events.ResolutionEventPublisher
	logger    *logging.Logger
}

// NewPrincipalRemapper creates a remapper. mapping, search and publisher may each be nil: without a
// mapping table no overrides apply, without a search service no directory lookups happen.
func NewPrincipalRemapper(
	config migration.TransformationConfig,
	mapping *principal.MappingTable,
	search *PrincipalSearchService,
	publisher events.ResolutionEventPublisher,
) *PrincipalRemapper {
	return &PrincipalRemapper{
		config:    config,
		mapping:   mapping,
		search:    search,
		publisher: publisher,
		logger:    logging.Default().WithComponent("principal_remapper"),
	}
}

// NewPrincipalRemapperFromConfig validates config, loads its mapping file (if any) and wires the
// directory lookups. search may be nil.
func NewPrincipalRemapperFromConfig(
	config migration.TransformationConfig,
	loader MappingTableLoader,
	search *PrincipalSearchService,
	publisher events.ResolutionEventPublisher,
) (*PrincipalRemapper, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transformation config: %w", err)
	}

	var table *principal.MappingTable
	if config.HasUserMappingFile() && !config.SkipUserMapping {
		var err error
		table, err = loader.LoadTable(config.UserMappingFile)
		if err != nil {
			return nil, err
		}
	}

	return NewPrincipalRemapper(config, table, search, publisher), nil
}

// MappingEntries returns the number of loaded overrides.
func (r *PrincipalRemapper) MappingEntries() int {
	return r.mapping.Len()
}

// LiveResolutionEnabled reports whether unmapped principals are looked up in the directory.
func (r *PrincipalRemapper) LiveResolutionEnabled() bool {
	return r.search != nil && r.config.LiveResolutionAllowed()
}

// Remap resolves raw, which may hold several principals separated by ';'. Directory failures are
// returned as errors; principals that simply cannot be found come back unchanged and unresolved.
func (r *PrincipalRemapper) Remap(ctx context.Context, raw string) (principal.ResolutionResult, error) {
	if strings.TrimSpace(raw) == "" || r.config.SkipUserMapping {
		return principal.Unresolved(raw), nil
	}

	start := time.Now()
	logger := r.logger.WithContext(ctx)
	runID, _ := logging.RunIDFromContext(ctx)

	parsed := principal.Parse(raw)
	outTokens := make([]string, 0, len(parsed.Tokens))
	var members []principal.ResolutionResult

	for _, tok := range parsed.Tokens {
		output, tokenMembers, err := r.remapToken(ctx, tok)
		if err != nil {
			duration := time.Since(start)
			logger.ResolutionError("Principal remap failed", err, raw)
			r.publishFailed(runID, raw, err, duration)
			return principal.ResolutionResult{}, fmt.Errorf("remap %q: %w", raw, err)
		}
		outTokens = append(outTokens, output)
		members = append(members, tokenMembers...)
	}

	result := principal.Combine(raw, parsed.Rebuild(outTokens), members)
	if !anyFound(members) {
		result.Principal = raw
	}

	duration := time.Since(start)
	logger.Resolution("Principal remapped", raw, result.Principal, result.Source.String())
	if r.publisher != nil {
		r.publisher.PublishPrincipalResolved(events.PrincipalResolvedEvent{
			RunID:     runID,
			Result:    result,
			Duration:  duration,
			Timestamp: time.Now(),
		})
	}
	return result, nil
}

// remapToken resolves one token. The whole token is looked up in the mapping table first, then
// each of its identities.
func (r *PrincipalRemapper) remapToken(ctx context.Context, tok principal.Token) (string, []principal.ResolutionResult, error) {
	if tok.Raw == "" {
		return "", nil, nil
	}

	if entry, ok := r.mapping.Lookup(tok.Raw); ok {
		return entry.Target, []principal.ResolutionResult{
			principal.Resolved(tok.Raw, entry.Target, principal.SourceMappingOverride),
		}, nil
	}

	if !tok.Resolvable() {
		return tok.Raw, nil, nil
	}

	members := make([]principal.ResolutionResult, 0, len(tok.Identities))
	values := make([]string, 0, len(tok.Identities))
	for _, id := range tok.Identities {
		result, err := r.resolveIdentity(ctx, id)
		if err != nil {
			return "", nil, err
		}
		members = append(members, result)
		values = append(values, result.Principal)
	}

	if !anyFound(members) {
		return tok.Raw, members, nil
	}
	return principal.EncodeToken(tok, values, allFound(members)), members, nil
}

func (r *PrincipalRemapper) resolveIdentity(ctx context.Context, id principal.Identity) (principal.ResolutionResult, error) {
	for _, key := range id.LookupKeys() {
		if entry, ok := r.mapping.Lookup(key); ok {
			return principal.Resolved(id.Value, entry.Target, principal.SourceMappingOverride), nil
		}
	}

	if id.IsUPN() || !r.LiveResolutionEnabled() {
		return principal.Unresolved(id.Value), nil
	}

	types := []principal.AccountType{id.Type}
	if id.TypeInferred {
		types = []principal.AccountType{principal.AccountTypeUser, principal.AccountTypeGroup}
	}

	for _, accountType := range types {
		found, err := r.search.SearchForUPN(ctx, accountType, id.Value)
		if err != nil {
			return principal.ResolutionResult{}, err
		}
		if found != "" {
			return principal.Resolved(id.Value, found, principal.SourceDirectoryLookup), nil
		}
	}
	return principal.Unresolved(id.Value), nil
}

func (r *PrincipalRemapper) publishFailed(runID, input string, err error, duration time.Duration) {
	if r.publisher == nil {
		return
	}
	r.publisher.PublishResolutionFailed(events.ResolutionFailedEvent{
		RunID:     runID,
		Input:     input,
		Error:     err,
		Duration:  duration,
		Timestamp: time.Now(),
	})
}

func anyFound(results []principal.ResolutionResult) bool {
	for _, r := range results {
		if r.Found {
			return true
		}
	}
	return false
}

func allFound(results []principal.ResolutionResult) bool {
	for _, r := range results {
		if !r.Found {
			return false
		}
	}
	return len(results) > 0
}
