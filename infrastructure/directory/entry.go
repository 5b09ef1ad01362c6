package directory

import (
	"strings"

	objectsid "github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"

	domaindir "spmigrate/domain/directory"
)

// binarySIDAttributes are returned by AD as raw SID bytes
var binarySIDAttributes = map[string]bool{
	"objectsid":          true,
	"securityidentifier": true,
}

// convertEntry copies an LDAP entry into a domain object, decoding binary SIDs to S-1-... form.
func convertEntry(e *ldap.Entry) domaindir.Object {
	obj := domaindir.Object{
		DN:         e.DN,
		Attributes: make(map[string][]string, len(e.Attributes)),
	}
	for _, attr := range e.Attributes {
		if binarySIDAttributes[strings.ToLower(attr.Name)] {
			obj.Attributes[attr.Name] = decodeSIDs(attr.ByteValues)
			continue
		}
		obj.Attributes[attr.Name] = attr.Values
	}
	return obj
}

func decodeSIDs(raw [][]byte) []string {
	sids := make([]string, 0, len(raw))
	for _, b := range raw {
		// revision, sub-authority count and the 6 byte authority
		if len(b) < 8 {
			continue
		}
		sids = append(sids, objectsid.Decode(b).String())
	}
	return sids
}

// parseScope splits an LDAP://host[:port][/baseDN] connection string.
// The base DN defaults to the DC= form of the host name.
func parseScope(scope string) (host, baseDN string) {
	s := strings.TrimSpace(scope)
	for _, prefix := range []string{"LDAP://", "LDAPS://", "GC://"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = s[len(prefix):]
			break
		}
	}

	host, baseDN, _ = strings.Cut(s, "/")
	host, _, _ = strings.Cut(host, ":")
	if baseDN == "" {
		baseDN = domainToBaseDN(host)
	}
	return strings.ToLower(host), baseDN
}

// domainToBaseDN turns contoso.com into DC=contoso,DC=com.
func domainToBaseDN(fqdn string) string {
	if fqdn == "" {
		return ""
	}
	labels := strings.Split(strings.Trim(fqdn, "."), ".")
	for i, label := range labels {
		labels[i] = "DC=" + label
	}
	return strings.Join(labels, ",")
}

// baseDNToDomain turns DC=contoso,DC=com into contoso.com.
func baseDNToDomain(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "DC") {
				labels = append(labels, attr.Value)
			}
		}
	}
	return strings.ToLower(strings.Join(labels, "."))
}
