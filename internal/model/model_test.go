package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, value := range []string{"ADMIN", "GERENTE", "COLABORADOR"} {
		role, err := ParseRole(value)
		require.NoError(t, err)
		assert.Equal(t, Role(value), role)
	}

	for _, value := range []string{"", "admin", "SUPERUSER", "1"} {
		_, err := ParseRole(value)
		assert.Error(t, err, "value %q", value)
	}
}

func TestRoleFromCodeIsTotal(t *testing.T) {
	cases := map[string]Role{
		"1": RoleAdmin,
		"2": RoleManager,
		"3": RoleCollaborator,
	}
	for code, want := range cases {
		role, err := RoleFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, want, role)
	}

	for _, code := range []string{"", "0", "4", "ADMIN"} {
		_, err := RoleFromCode(code)
		assert.Error(t, err, "code %q", code)
	}
}

func TestParseCategoryKind(t *testing.T) {
	for _, value := range []string{"receita", "despesa"} {
		kind, err := ParseCategoryKind(value)
		require.NoError(t, err)
		assert.Equal(t, CategoryKind(value), kind)
	}

	_, err := ParseCategoryKind("investimento")
	assert.Error(t, err)
}
