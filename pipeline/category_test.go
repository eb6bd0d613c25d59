package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "busshelter", NormalizeKey("Bus Shelter"))
	assert.Equal(t, "busshelter", NormalizeKey("bus_shelter"))
	assert.Equal(t, "busshelter", NormalizeKey("BUSSHELTER"))
	assert.Equal(t, "digitalooh", NormalizeKey("  Digital _ OOH "))
	assert.Equal(t, "", NormalizeKey("  _ "))
}

func TestCategoryResolver(t *testing.T) {
	t.Run("MissingFileIsEmptyTable", func(t *testing.T) {
		r, err := NewCategoryResolver(filepath.Join(t.TempDir(), "missing.json"))
		require.NoError(t, err)
		assert.Equal(t, 0, r.Size())

		_, ok := r.Resolve("Hoarding")
		assert.False(t, ok)
	})

	t.Run("RegisterPersistsAndHotReloads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "category_map.json")
		r, err := NewCategoryResolver(path)
		require.NoError(t, err)

		id := uuid.New()
		require.NoError(t, r.Register("Bus Shelter", id))

		got, ok := r.Resolve("bus_shelter")
		require.True(t, ok)
		assert.Equal(t, id, got)

		// a fresh resolver sees the persisted table
		fresh, err := NewCategoryResolver(path)
		require.NoError(t, err)
		got, ok = fresh.Resolve("BUSSHELTER")
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("EmptyNameRejected", func(t *testing.T) {
		r, err := NewCategoryResolver(filepath.Join(t.TempDir(), "map.json"))
		require.NoError(t, err)
		assert.Error(t, r.Register("   ", uuid.New()))
	})

	t.Run("InvalidUUIDInFileFailsLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "map.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Hoarding": "not-a-uuid"}`), 0o644))

		_, err := NewCategoryResolver(path)
		assert.Error(t, err)
	})

	t.Run("EmptyLabelNeverResolves", func(t *testing.T) {
		r, err := NewCategoryResolver(filepath.Join(t.TempDir(), "map.json"))
		require.NoError(t, err)
		require.NoError(t, r.Register("Hoarding", uuid.New()))

		_, ok := r.Resolve("   ")
		assert.False(t, ok)
	})
}

func TestMapLightingType(t *testing.T) {
	assert.Equal(t, LightingDigital, MapLightingType("Digital"))
	assert.Equal(t, LightingDigital, MapLightingType("digital back lit"))
	assert.Equal(t, LightingBacklit, MapLightingType("Back Lit"))
	assert.Equal(t, LightingBacklit, MapLightingType("bl"))
	assert.Equal(t, LightingFrontlit, MapLightingType("front-lit"))
	assert.Equal(t, LightingFrontlit, MapLightingType("FL"))
	assert.Equal(t, LightingUnlit, MapLightingType("ambient"))
	assert.Equal(t, LightingUnlit, MapLightingType(""))
}
