package directory

import "strings"

// Query is a read-only directory search
type Query struct {
	Scope      string // LDAP connection string of the target domain; empty means the default domain
	Filter     string // RFC 4515 filter
	Attributes []string
	SizeLimit  int // 0 means no limit
}

// Object is a directory entry with its requested attributes. Attribute names are
// matched case-insensitively, as LDAP does.
type Object struct {
	DN         string
	Attributes map[string][]string
}

// Attribute returns the first value of the named attribute, or "".
func (o Object) Attribute(name string) string {
	if values := o.Values(name); len(values) > 0 {
		return values[0]
	}
	return ""
}

// Values returns every value of the named attribute.
func (o Object) Values(name string) []string {
	if v, ok := o.Attributes[name]; ok {
		return v
	}
	for k, v := range o.Attributes {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// HasObjectClass reports whether class is one of the entry's objectClass values.
func (o Object) HasObjectClass(class string) bool {
	for _, c := range o.Values("objectClass") {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// TrustedDomain describes a domain reachable from the joined domain, including the joined domain itself
type TrustedDomain struct {
	FriendlyName string // NetBIOS name, e.g. ALPHADELTA
	FQDN         string // DNS name, e.g. alphadelta.contoso.com
	SID          string // domain SID, empty when the directory did not report it
}

// DomainContext is a resolved friendly domain
type DomainContext struct {
	FriendlyName string
	FQDN         string
}
