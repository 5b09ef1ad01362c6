package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	domaindir "spmigrate/domain/directory"
	"spmigrate/domain/principal"
	"spmigrate/logging"
)

// QueryObserver receives the timing of every directory round trip
type QueryObserver interface {
	ObserveDirectoryQuery(operation string, duration time.Duration, err error)
}

// LDAPDirectory implements contracts.DirectoryService against Active Directory over LDAP.
// Connections are pooled per domain and safe for concurrent use.
type LDAPDirectory struct {
	config   Config
	observer QueryObserver
	logger   *logging.Logger

	joinedOnce   sync.Once
	joinedDomain string
	joinedErr    error

	mu    sync.Mutex
	conns map[string]*ldap.Conn // host -> bound connection
}

// NewLDAPDirectory creates the adapter. observer may be nil.
func NewLDAPDirectory(config Config, observer QueryObserver) (*LDAPDirectory, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid directory config: %w", err)
	}
	return &LDAPDirectory{
		config:   config,
		observer: observer,
		logger:   logging.Default().WithComponent("ldap_directory"),
		conns:    make(map[string]*ldap.Conn),
	}, nil
}

// Query runs a subtree search below the base DN of query.Scope.
func (d *LDAPDirectory) Query(ctx context.Context, query domaindir.Query) ([]domaindir.Object, error) {
	scope := query.Scope
	if scope == "" {
		var err error
		if scope, err = d.defaultScope(ctx); err != nil {
			return nil, err
		}
	}

	host, baseDN := parseScope(scope)
	if host == "" {
		return nil, fmt.Errorf("scope %q names no host: %w", scope, principal.ErrInvalidDomain)
	}

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		query.SizeLimit, 0, false,
		query.Filter,
		query.Attributes,
		nil,
	)

	entries, err := d.search(ctx, "query", host, req)
	if err != nil {
		return nil, err
	}

	objects := make([]domaindir.Object, 0, len(entries))
	for _, e := range entries {
		objects = append(objects, convertEntry(e))
	}
	return objects, nil
}

// searchBufferSize bounds the entries queued between the connection reader and the caller
const searchBufferSize = 64

// search runs req on the pooled connection to host. When ctx ends first only this search is
// abandoned; the connection stays pooled for concurrent callers.
func (d *LDAPDirectory) search(ctx context.Context, operation, host string, req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	start := time.Now()
	entries, err := d.doSearch(ctx, host, req)
	duration := time.Since(start)

	if d.observer != nil {
		d.observer.ObserveDirectoryQuery(operation, duration, err)
	}
	if err != nil {
		d.logger.Warn("Directory search failed",
			"host", host,
			"base_dn", req.BaseDN,
			"filter", req.Filter,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, err
	}

	d.logger.Directory("Directory search completed",
		"host", host,
		"base_dn", req.BaseDN,
		"filter", req.Filter,
		"entries", len(entries),
		"duration_ms", duration.Milliseconds())
	return entries, nil
}

func (d *LDAPDirectory) doSearch(ctx context.Context, host string, req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	conn, err := d.connection(ctx, host)
	if err != nil {
		return nil, errors.Join(principal.ErrDirectoryQuery, err)
	}
	if !d.pooled(host, conn) {
		defer conn.Close()
	}

	var entries []*ldap.Entry
	resp := conn.SearchAsync(ctx, req, searchBufferSize)
	for resp.Next() {
		if entry := resp.Entry(); entry != nil {
			entries = append(entries, entry)
		}
	}

	// a cancelled search ends without an error of its own
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Join(principal.ErrDirectoryQuery, ctxErr)
	}
	return d.searchResult(host, conn, entries, resp.Err())
}

func (d *LDAPDirectory) searchResult(host string, conn *ldap.Conn, entries []*ldap.Entry, err error) ([]*ldap.Entry, error) {
	if err == nil {
		return entries, nil
	}

	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return nil, nil
	case ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded):
		return entries, nil
	case ldap.IsErrorWithCode(err, ldap.ErrorNetwork), conn.IsClosing():
		d.drop(host, conn)
	}
	return nil, errors.Join(principal.ErrDirectoryQuery, err)
}

func (d *LDAPDirectory) defaultScope(ctx context.Context) (string, error) {
	if d.config.DefaultScope != "" {
		return d.config.DefaultScope, nil
	}
	domain, err := d.GetJoinedDomain(ctx)
	if err != nil {
		return "", err
	}
	return "LDAP://" + domain, nil
}
