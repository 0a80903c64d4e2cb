package bootstrap

import (
	"context"
	"testing"

	"quad/internal/models"
	"quad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedBuiltIns(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	require.NoError(t, SeedBuiltIns(context.Background(), db))
	require.NoError(t, SeedBuiltIns(context.Background(), db))

	var forum models.Forum
	require.NoError(t, db.Where("slug = ?", "general").First(&forum).Error)
	assert.Equal(t, 0, forum.Position)
}
