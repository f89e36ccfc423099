package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
	"github.com/spigell/matchai/internal/repository"
)

func TestAddCompany(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	added, err := addCompany(ctx, repo, &jobs.Company{UID: " 12.34 ", Name: "Acme", Token: "secret"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = addCompany(ctx, repo, &jobs.Company{UID: "12.34", Name: "Acme again", Token: "other"})
	require.NoError(t, err)
	assert.False(t, added)

	companies, err := repo.Companies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "12.34", companies[0].UID)
	assert.Equal(t, "Acme", companies[0].Name)
	assert.Equal(t, "secret", companies[0].Token)
}

func TestAddCompanyRequiresEveryField(t *testing.T) {
	for name, company := range map[string]jobs.Company{
		"no uid":   {Name: "Acme", Token: "secret"},
		"no name":  {UID: "12.34", Token: "secret"},
		"no token": {UID: "12.34", Name: "Acme", Token: "  "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := addCompany(context.Background(), repository.NewMemory(), &company)
			require.Error(t, err)
			assert.Equal(t, failure.KindValidation, failure.KindOf(err))
		})
	}
}
