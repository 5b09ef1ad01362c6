package helpers

import (
	"context"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"spmigrate/domain/directory"
	"spmigrate/domain/principal"
)

var assertionPattern = regexp.MustCompile(`\(([A-Za-z]+)=([^()]*)\)`)

// FakeDirectory is an in-memory DirectoryService. It understands the equality filters the search
// service builds and counts every call.
type FakeDirectory struct {
	JoinedDomain string
	Trusts       []directory.TrustedDomain

	// QueryErr, TrustErr and JoinedErr force the matching call to fail
	QueryErr  error
	TrustErr  error
	JoinedErr error

	// TrustDelay holds GetTrustedDomains back, for tests of concurrent first lookups
	TrustDelay time.Duration

	mu      sync.Mutex
	objects map[string][]directory.Object // lower(scope) -> objects
	queries []directory.Query

	trustCalls  atomic.Int32
	joinedCalls atomic.Int32
}

// NewFakeDirectory creates a directory joined to joinedDomain.
func NewFakeDirectory(joinedDomain string, trusts ...directory.TrustedDomain) *FakeDirectory {
	return &FakeDirectory{
		JoinedDomain: joinedDomain,
		Trusts:       trusts,
		objects:      make(map[string][]directory.Object),
	}
}

// AddUser adds a user object to the domain fqdn.
func (f *FakeDirectory) AddUser(fqdn, sam, upn, sid string) {
	f.add(fqdn, directory.Object{
		DN: "CN=" + sam + ",CN=Users," + baseDN(fqdn),
		Attributes: map[string][]string{
			"objectClass":       {"top", "person", "organizationalPerson", "user"},
			"sAMAccountName":    {sam},
			"userPrincipalName": nonEmpty(upn),
			"objectSid":         nonEmpty(sid),
		},
	})
}

// AddGroup adds a group object to the domain fqdn.
func (f *FakeDirectory) AddGroup(fqdn, sam, upn, mail, sid string) {
	f.add(fqdn, directory.Object{
		DN: "CN=" + sam + ",CN=Users," + baseDN(fqdn),
		Attributes: map[string][]string{
			"objectClass":       {"top", "group"},
			"sAMAccountName":    {sam},
			"userPrincipalName": nonEmpty(upn),
			"mail":              nonEmpty(mail),
			"objectSid":         nonEmpty(sid),
		},
	})
}

// AddForeignPrincipal adds the stand-in object a domain keeps for a principal of a trusted domain.
func (f *FakeDirectory) AddForeignPrincipal(fqdn, sid string) {
	f.add(fqdn, directory.Object{
		DN: "CN=" + sid + ",CN=ForeignSecurityPrincipals," + baseDN(fqdn),
		Attributes: map[string][]string{
			"objectClass": {"top", "foreignSecurityPrincipal"},
			"cn":          {sid},
			"objectSid":   {sid},
		},
	})
}

func (f *FakeDirectory) add(fqdn string, obj directory.Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower("LDAP://" + fqdn)
	f.objects[key] = append(f.objects[key], obj)
}

// Query implements DirectoryService.
func (f *FakeDirectory) Query(ctx context.Context, query directory.Query) ([]directory.Object, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	objects := append([]directory.Object(nil), f.objects[strings.ToLower(query.Scope)]...)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}

	var matched []directory.Object
	for _, obj := range objects {
		if matches(obj, query.Filter) {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

// GetTrustedDomains implements DirectoryService.
func (f *FakeDirectory) GetTrustedDomains(ctx context.Context) ([]directory.TrustedDomain, error) {
	f.trustCalls.Add(1)
	if f.TrustDelay > 0 {
		select {
		case <-time.After(f.TrustDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.TrustErr != nil {
		return nil, f.TrustErr
	}
	return f.Trusts, nil
}

// GetJoinedDomain implements DirectoryService.
func (f *FakeDirectory) GetJoinedDomain(ctx context.Context) (string, error) {
	f.joinedCalls.Add(1)
	if f.JoinedErr != nil {
		return "", f.JoinedErr
	}
	if f.JoinedDomain == "" {
		return "", principal.ErrDirectoryUnavailable
	}
	return f.JoinedDomain, nil
}

// Queries returns the queries received so far.
func (f *FakeDirectory) Queries() []directory.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]directory.Query(nil), f.queries...)
}

// QueryCount returns the number of Query calls.
func (f *FakeDirectory) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// TrustCalls returns the number of GetTrustedDomains calls.
func (f *FakeDirectory) TrustCalls() int {
	return int(f.trustCalls.Load())
}

// JoinedCalls returns the number of GetJoinedDomain calls.
func (f *FakeDirectory) JoinedCalls() int {
	return int(f.joinedCalls.Load())
}

// matches evaluates the equality assertions of filter. objectClass assertions are treated as
// alternatives; every other attribute must match.
func matches(obj directory.Object, filter string) bool {
	classMatched, classSeen := false, false
	for _, m := range assertionPattern.FindAllStringSubmatch(filter, -1) {
		attr, value := m[1], unescapeFilterValue(m[2])
		switch {
		case strings.EqualFold(attr, "objectCategory"):
			continue
		case strings.EqualFold(attr, "objectClass"):
			classSeen = true
			if obj.HasObjectClass(value) {
				classMatched = true
			}
		default:
			if !hasValue(obj, attr, value) {
				return false
			}
		}
	}
	return !classSeen || classMatched
}

func hasValue(obj directory.Object, attr, value string) bool {
	for _, v := range obj.Values(attr) {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func unescapeFilterValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) {
			if decoded, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				b.Write(decoded)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func baseDN(fqdn string) string {
	labels := strings.Split(fqdn, ".")
	for i, l := range labels {
		labels[i] = "DC=" + l
	}
	return strings.Join(labels, ",")
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
