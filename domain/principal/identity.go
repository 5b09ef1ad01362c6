package principal

import (
	"regexp"
	"strings"
	"unicode"
)

// AccountType discriminates user and group principals
type AccountType int

const (
	AccountTypeUser AccountType = iota
	AccountTypeGroup
)

// String returns the lower-case name of the account type
func (t AccountType) String() string {
	switch t {
	case AccountTypeGroup:
		return "group"
	default:
		return "user"
	}
}

// ParseAccountType parses "user" or "group" (case-insensitive).
func ParseAccountType(s string) (AccountType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return AccountTypeUser, true
	case "group":
		return AccountTypeGroup, true
	}
	return AccountTypeUser, false
}

// SharePoint claim prefixes seen on source and target farms.
const (
	WindowsUserClaimPrefix    = "i:0#.w|"
	WindowsGroupClaimPrefix   = "c:0+.w|"
	MembershipUserClaimPrefix = "i:0#.f|membership|"
	TenantGroupClaimPrefix    = "c:0t.c|tenant|"
	EveryoneClaim             = "c:0(.s|true"
)

// TokenSeparator separates the principals of a multi-valued principal string.
const TokenSeparator = ";"

// identitySeparator separates the identities listed inside one claim value.
const identitySeparator = ","

var claimPattern = regexp.MustCompile(`^[icIC]:0[^|]*\|`)

// Identity is a single principal reference extracted from a raw principal string.
type Identity struct {
	Value   string // identifier as written: domain\account, account, SID or UPN
	Domain  string // friendly domain for domain\account values
	Account string // account name without domain
	Type    AccountType
	IsSID   bool

	// TypeInferred is set when nothing in the input states whether this is a user or a group.
	TypeInferred bool
}

// ParseIdentity classifies a bare identifier.
func ParseIdentity(value string, accountType AccountType, inferred bool) Identity {
	value = strings.TrimSpace(value)
	id := Identity{
		Value:        value,
		Account:      value,
		Type:         accountType,
		TypeInferred: inferred,
	}

	if IsSID(value) {
		id.IsSID = true
		id.Value = NormalizeSID(value)
		id.Account = id.Value
		return id
	}

	if domain, account, ok := strings.Cut(value, `\`); ok {
		id.Domain = domain
		id.Account = account
	}
	return id
}

// IsUPN reports whether the identity already has the user@domain shape.
func (i Identity) IsUPN() bool {
	return i.Domain == "" && !i.IsSID && strings.Contains(i.Value, "@")
}

// LookupKeys returns the mapping table keys for this identity, most specific first.
func (i Identity) LookupKeys() []string {
	keys := []string{i.Value}
	if i.Domain != "" && i.Account != "" {
		keys = append(keys, i.Account)
	}
	return keys
}

// Token is one element of a (possibly multi-valued) raw principal string.
type Token struct {
	Raw        string
	Prefix     string // claim prefix including the trailing '|'; empty for plain names
	Identities []Identity

	// Whitespace around Raw in the original string, restored by Principal.Rebuild
	Leading, Trailing string
}

// IsClaim reports whether the token was claims encoded.
func (t Token) IsClaim() bool {
	return t.Prefix != ""
}

// Resolvable reports whether the token carries identities worth resolving.
func (t Token) Resolvable() bool {
	return len(t.Identities) > 0
}

// Principal is a raw principal string decomposed into its tokens.
type Principal struct {
	Raw    string
	Tokens []Token
}

// Parse decomposes a raw principal. It never fails: input it cannot classify ends up as a
// token without identities, which callers treat as already target shaped.
func Parse(raw string) Principal {
	p := Principal{Raw: raw}
	for _, part := range strings.Split(raw, TokenSeparator) {
		trimmed := strings.TrimLeftFunc(part, unicode.IsSpace)
		leading := part[:len(part)-len(trimmed)]
		value := strings.TrimRightFunc(trimmed, unicode.IsSpace)

		tok := parseToken(value)
		tok.Leading = leading
		tok.Trailing = trimmed[len(value):]
		p.Tokens = append(p.Tokens, tok)
	}
	return p
}

// Rebuild joins one output per token, keeping the separators and surrounding whitespace of the
// original string.
func (p Principal) Rebuild(outputs []string) string {
	var b strings.Builder
	for i, tok := range p.Tokens {
		if i > 0 {
			b.WriteString(TokenSeparator)
		}
		b.WriteString(tok.Leading)
		if i < len(outputs) {
			b.WriteString(outputs[i])
		}
		b.WriteString(tok.Trailing)
	}
	return b.String()
}

func parseToken(raw string) Token {
	tok := Token{Raw: raw}
	if raw == "" {
		return tok
	}

	if !claimPattern.MatchString(raw) {
		tok.Identities = []Identity{ParseIdentity(raw, AccountTypeUser, true)}
		return tok
	}

	cut := strings.LastIndex(raw, "|")
	tok.Prefix = raw[:cut+1]
	value := raw[cut+1:]

	// The everyone claim ("c:0(.s|true") has no identity behind it
	if strings.EqualFold(raw, EveryoneClaim) || value == "" {
		return tok
	}

	accountType := AccountTypeUser
	if raw[0] == 'c' || raw[0] == 'C' {
		accountType = AccountTypeGroup
	}

	for _, v := range strings.Split(value, identitySeparator) {
		if v = strings.TrimSpace(v); v != "" {
			tok.Identities = append(tok.Identities, ParseIdentity(v, accountType, false))
		}
	}
	return tok
}

// TargetClaimPrefix returns the SharePoint Online prefix that replaces a source farm claim prefix
// once every identity in the token has been resolved. Prefixes without a cloud equivalent are kept.
func TargetClaimPrefix(sourcePrefix string) string {
	switch strings.ToLower(sourcePrefix) {
	case WindowsUserClaimPrefix:
		return MembershipUserClaimPrefix
	case WindowsGroupClaimPrefix:
		return TenantGroupClaimPrefix
	default:
		return sourcePrefix
	}
}

// IsClaimsEncoded reports whether value is already a full claim (carries a provider separator).
func IsClaimsEncoded(value string) bool {
	return strings.Contains(value, "|")
}

// EncodeToken rebuilds a token from resolved values. allResolved selects the target prefix;
// values that are claims encoded on their own replace the whole token.
func EncodeToken(tok Token, values []string, allResolved bool) string {
	if len(values) == 1 && IsClaimsEncoded(values[0]) {
		return values[0]
	}
	prefix := tok.Prefix
	if allResolved {
		prefix = TargetClaimPrefix(tok.Prefix)
	}
	return prefix + strings.Join(values, identitySeparator)
}
