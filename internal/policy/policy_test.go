package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-photosync/internal/models"
)

func TestRequired_OriginalOnly(t *testing.T) {
	required, err := Required([]models.VersionKind{models.VersionOriginal})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{models.VersionOriginal}, required)
}

func TestRequired_IncludesAdjustedWhenAvailable(t *testing.T) {
	required, err := Required([]models.VersionKind{models.VersionOriginal, models.VersionAdjusted})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{models.VersionOriginal, models.VersionAdjusted}, required)
}

func TestRequired_IncludesAlternativeWhenAvailable(t *testing.T) {
	required, err := Required([]models.VersionKind{models.VersionOriginal, models.VersionAlternative})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{models.VersionOriginal, models.VersionAlternative}, required)
}

func TestRequired_AllThree(t *testing.T) {
	required, err := Required([]models.VersionKind{
		models.VersionOriginal, models.VersionAdjusted, models.VersionAlternative,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{
		models.VersionOriginal, models.VersionAdjusted, models.VersionAlternative,
	}, required)
}

func TestRequired_OrderIndependent(t *testing.T) {
	forward, err := Required([]models.VersionKind{
		models.VersionOriginal, models.VersionAdjusted, models.VersionAlternative,
	})
	require.NoError(t, err)

	reversed, err := Required([]models.VersionKind{
		models.VersionAlternative, models.VersionAdjusted, models.VersionOriginal,
	})
	require.NoError(t, err)

	assert.Equal(t, forward, reversed)
}

func TestRequired_OriginalAlwaysRequired(t *testing.T) {
	// Even if the catalog omits original from the list, policy demands it.
	required, err := Required([]models.VersionKind{models.VersionAdjusted})
	require.NoError(t, err)
	assert.Contains(t, required, models.VersionOriginal)
}

func TestRequired_EmptyInputIsDataError(t *testing.T) {
	_, err := Required(nil)
	assert.ErrorIs(t, err, ErrNoVersions)

	_, err = Required([]models.VersionKind{})
	assert.ErrorIs(t, err, ErrNoVersions)
}

func TestRequired_UnknownKindsIgnored(t *testing.T) {
	required, err := Required([]models.VersionKind{"medium", models.VersionOriginal})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{models.VersionOriginal}, required)

	// Only unknown kinds left after filtering is still a data error.
	_, err = Required([]models.VersionKind{"medium", "thumb"})
	assert.ErrorIs(t, err, ErrNoVersions)
}

func TestRequired_DuplicatesCollapse(t *testing.T) {
	required, err := Required([]models.VersionKind{
		models.VersionOriginal, models.VersionOriginal, models.VersionAdjusted, models.VersionAdjusted,
	})
	require.NoError(t, err)
	assert.Equal(t, []models.VersionKind{models.VersionOriginal, models.VersionAdjusted}, required)
}
