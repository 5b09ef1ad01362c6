package application

import (
	"github.com/go-ldap/ldap/v3"

	"spmigrate/domain/principal"
)

// Attributes requested for every principal search
var principalAttributes = []string{
	"userPrincipalName",
	"mail",
	"sAMAccountName",
	"objectClass",
	"objectSid",
	"cn",
}

const foreignSecurityPrincipalClass = "foreignSecurityPrincipal"

func classFilter(accountType principal.AccountType) string {
	if accountType == principal.AccountTypeGroup {
		return "(objectClass=group)"
	}
	return "(&(objectCategory=person)(objectClass=user))"
}

// accountNameFilter matches a user or group by its pre-Windows 2000 logon name.
func accountNameFilter(accountType principal.AccountType, account string) string {
	return "(&" + classFilter(accountType) + "(sAMAccountName=" + ldap.EscapeFilter(account) + "))"
}

// sidFilter matches a user or group by SID. Principals of trusted domains appear in the local
// domain as foreign security principals, so those match too unless followForeign is false.
func sidFilter(accountType principal.AccountType, sid string, followForeign bool) string {
	class := classFilter(accountType)
	if followForeign {
		class = "(|" + class + "(objectClass=" + foreignSecurityPrincipalClass + "))"
	}
	return "(&" + class + "(objectSid=" + ldap.EscapeFilter(principal.NormalizeSID(sid)) + "))"
}
