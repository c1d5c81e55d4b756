package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websync-digital/sunlit-blue-spark/internal/prefs"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

func TestStore_GetSetClear(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "v1", prefs.KeyTheme)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, s.Set(ctx, "v1", prefs.KeyTheme, "dark"))
	v, err := s.Get(ctx, "v1", prefs.KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	_, err = s.Get(ctx, "v2", prefs.KeyTheme)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "profiles are isolated")

	require.NoError(t, s.Clear(ctx, "v1", prefs.KeyTheme))
	require.NoError(t, s.Clear(ctx, "v1", prefs.KeyTheme))
	_, err = s.Get(ctx, "v1", prefs.KeyTheme)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProfile_JSON(t *testing.T) {
	ctx := context.Background()
	p := prefs.ForProfile(New(), "v1")

	require.NoError(t, p.SetJSON(ctx, prefs.KeyFavorites, []string{"a", "b"}))
	var ids []string
	require.NoError(t, p.GetJSON(ctx, prefs.KeyFavorites, &ids))
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, p.Set(ctx, prefs.KeyFavorites, "{broken"))
	assert.Error(t, p.GetJSON(ctx, prefs.KeyFavorites, &ids))
}
