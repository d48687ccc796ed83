package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"assessly-backend/internal/models"
)

func TestHasRole(t *testing.T) {
	claims := &Claims{Role: models.RoleCandidate}

	require.True(t, claims.HasRole(), "empty allowlist admits any authenticated principal")
	require.True(t, claims.HasRole(models.RoleCandidate))
	require.True(t, claims.HasRole(models.RoleAdmin, models.RoleCandidate))
	require.False(t, claims.HasRole(models.RoleAdmin))
	require.False(t, claims.HasRole(models.RoleAdmin, models.RoleAssessor))
}

func TestHasOrgRole(t *testing.T) {
	claims := &Claims{
		Role: models.RoleAssessor,
		OrgRoles: map[string]string{
			"org-1": models.RoleAssessor,
		},
	}

	require.True(t, claims.HasOrgRole("org-1"))
	require.True(t, claims.HasOrgRole("org-1", models.RoleAssessor))
	require.False(t, claims.HasOrgRole("org-1", models.RoleAdmin))
	require.False(t, claims.HasOrgRole("org-2"))

	admin := &Claims{Role: models.RoleAdmin}
	require.True(t, admin.HasOrgRole("org-2", models.RoleAssessor), "platform admins pass any org check")
}
