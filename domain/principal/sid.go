package principal

import (
	"regexp"
	"strings"
)

// sidPattern matches S-<revision>-<authority>-<subauthority>[-<subauthority>...]
var sidPattern = regexp.MustCompile(`(?i)^S-\d+-\d+(-\d+)+$`)

// IsSID reports whether s is a SID in string form. Matching is case-insensitive.
func IsSID(s string) bool {
	return sidPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeSID returns the SID with an upper-case "S-" prefix.
func NormalizeSID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == 's' || s[0] == 'S') && s[1] == '-' {
		return "S" + s[1:]
	}
	return s
}

// DomainSID strips the relative identifier from an account SID issued by a domain
// (S-1-5-21-a-b-c-RID). It returns false for SIDs that are not domain-relative.
func DomainSID(sid string) (string, bool) {
	sid = NormalizeSID(sid)
	if !IsSID(sid) || !strings.HasPrefix(sid, "S-1-5-21-") {
		return "", false
	}
	parts := strings.Split(sid, "-")
	// S, 1, 5, 21, a, b, c, RID
	if len(parts) < 8 {
		return "", false
	}
	return strings.Join(parts[:len(parts)-1], "-"), true
}

// wellKnownSIDs maps well-known SIDs to their names.
var wellKnownSIDs = map[string]string{
	"S-1-0-0":      "Null SID",
	"S-1-1-0":      "Everyone",
	"S-1-2-0":      "Local",
	"S-1-2-1":      "Console Logon",
	"S-1-3-0":      "Creator Owner",
	"S-1-3-1":      "Creator Group",
	"S-1-5-1":      "NT AUTHORITY\\Dialup",
	"S-1-5-2":      "NT AUTHORITY\\Network",
	"S-1-5-3":      "NT AUTHORITY\\Batch",
	"S-1-5-4":      "NT AUTHORITY\\Interactive",
	"S-1-5-6":      "NT AUTHORITY\\Service",
	"S-1-5-7":      "NT AUTHORITY\\Anonymous Logon",
	"S-1-5-9":      "NT AUTHORITY\\Enterprise Domain Controllers",
	"S-1-5-10":     "NT AUTHORITY\\Self",
	"S-1-5-11":     "NT AUTHORITY\\Authenticated Users",
	"S-1-5-12":     "NT AUTHORITY\\Restricted",
	"S-1-5-13":     "NT AUTHORITY\\Terminal Server Users",
	"S-1-5-14":     "NT AUTHORITY\\Remote Interactive Logon",
	"S-1-5-18":     "NT AUTHORITY\\SYSTEM",
	"S-1-5-19":     "NT AUTHORITY\\Local Service",
	"S-1-5-20":     "NT AUTHORITY\\Network Service",
	"S-1-5-32-544": "BUILTIN\\Administrators",
	"S-1-5-32-545": "BUILTIN\\Users",
	"S-1-5-32-546": "BUILTIN\\Guests",
	"S-1-5-32-547": "BUILTIN\\Power Users",
	"S-1-5-32-548": "BUILTIN\\Account Operators",
	"S-1-5-32-549": "BUILTIN\\Server Operators",
	"S-1-5-32-550": "BUILTIN\\Print Operators",
	"S-1-5-32-551": "BUILTIN\\Backup Operators",
	"S-1-5-32-552": "BUILTIN\\Replicators",
}

// WellKnownSIDName returns the name of a well-known SID.
func WellKnownSIDName(sid string) (string, bool) {
	name, ok := wellKnownSIDs[NormalizeSID(sid)]
	return name, ok
}

// IsWellKnownSID reports whether sid is a well-known (non domain-issued) SID.
// These never exist as directory objects.
func IsWellKnownSID(sid string) bool {
	sid = NormalizeSID(sid)
	if _, ok := wellKnownSIDs[sid]; ok {
		return true
	}
	if strings.HasPrefix(sid, "S-1-5-32-") {
		return true
	}
	parts := strings.Split(sid, "-")
	if len(parts) < 3 {
		return false
	}
	// Authorities 0-4 (null, world, local, creator, non-unique) are all well-known
	switch parts[2] {
	case "0", "1", "2", "3", "4":
		return true
	}
	return false
}

// IsEveryoneSID reports whether sid grants access to every authenticated caller.
func IsEveryoneSID(sid string) bool {
	switch NormalizeSID(sid) {
	case "S-1-1-0", "S-1-5-11":
		return true
	}
	return false
}
