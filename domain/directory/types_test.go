package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObject_AttributeLookupIgnoresCase(t *testing.T) {
	obj := Object{
		DN: "CN=Test User3,CN=Users,DC=contoso,DC=com",
		Attributes: map[string][]string{
			"userPrincipalName": {"t.user3@contoso.com"},
			"objectClass":       {"top", "person", "organizationalPerson", "user"},
		},
	}

	assert.Equal(t, "t.user3@contoso.com", obj.Attribute("userprincipalname"))
	assert.Equal(t, "", obj.Attribute("mail"))
	assert.True(t, obj.HasObjectClass("USER"))
	assert.False(t, obj.HasObjectClass("group"))
}
