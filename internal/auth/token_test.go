package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"*:*",
		"resource:person:view",
		"resource:building:*",
		"resource:*",
		"import_export:all",
		"system:manage_permissions",
	} {
		tok, err := ParseToken(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, tok.String())
	}
}

func TestParseToken_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"person",
		"a:b:c:d",
		"resource::view",
		"*:person:view",
		"resource:*:view",
		":view",
	} {
		_, err := ParseToken(s)
		assert.Error(t, err, s)
	}
}

func TestCovers(t *testing.T) {
	cases := []struct {
		grant, required string
		want            bool
	}{
		// 精确匹配
		{"resource:person:view", "resource:person:view", true},
		{"resource:person:view", "resource:person:edit", false},
		{"resource:person:view", "resource:building:view", false},
		// 全局通配
		{"*:*", "resource:person:delete", true},
		{"*:*", "system:manage_permissions", true},
		// 末段通配
		{"resource:person:*", "resource:person:view", true},
		{"resource:person:*", "resource:person:delete", true},
		{"resource:person:*", "resource:building:view", false},
		{"resource:*", "resource:person:view", true},
		{"resource:*", "resource:grid:edit", true},
		{"resource:*", "import_export:all", false},
		{"import_export:all", "import_export:all", true},
		{"system:view", "system:manage_permissions", false},
	}
	for _, c := range cases {
		grant := MustToken(c.grant)
		required := MustToken(c.required)
		assert.Equal(t, c.want, grant.Covers(required), "%s covers %s", c.grant, c.required)
	}
}

func TestCovers_ZeroToken(t *testing.T) {
	var zero Token
	assert.False(t, zero.Covers(PermPersonView))
	assert.False(t, AllToken.Covers(zero))
}
