package cluster_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster"
	"github.com/syssam/cluster/schema"
	"github.com/syssam/cluster/schema/field"
)

func TestRecordSet(t *testing.T) {
	t.Parallel()
	band, err := cluster.New(bandEntity)
	require.NoError(t, err)

	require.NoError(t, band.Set("name", "The Beatles"))
	assert.Equal(t, "The Beatles", band.Get("name"))

	t.Run("Coercion", func(t *testing.T) {
		album := cluster.MustNew(albumEntity)
		require.NoError(t, album.Set("release_date", "1963-03-22"))
		released, ok := album.Get("release_date").(time.Time)
		require.True(t, ok)
		assert.Equal(t, 1963, released.Year())

		require.NoError(t, album.Set("sort_order", "2"))
		assert.Equal(t, int64(2), album.Get("sort_order"))
	})

	t.Run("Validator", func(t *testing.T) {
		err := band.Set("name", "")
		require.Error(t, err)
		assert.True(t, cluster.IsValidationError(err))
	})

	t.Run("UnknownField", func(t *testing.T) {
		err := band.Set("genre", "rock")
		require.Error(t, err)
		assert.True(t, cluster.IsValidationError(err))
	})

	t.Run("ClearWithNil", func(t *testing.T) {
		album := cluster.MustNew(albumEntity, cluster.WithValues(map[string]any{
			"name":         "Please Please Me",
			"release_date": "1963-03-22",
		}))
		require.NoError(t, album.Set("release_date", nil))
		assert.Nil(t, album.Get("release_date"))
	})
}

func TestRecordSetValues(t *testing.T) {
	t.Parallel()
	album := cluster.MustNew(albumEntity)
	err := album.SetValues(map[string]any{
		"name":  "",
		"genre": "rock",
	})
	require.Error(t, err)
	var agg *cluster.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
}

func TestRecordIdentity(t *testing.T) {
	t.Parallel()
	fresh := newMember("John Lennon")
	assert.False(t, fresh.Persisted())
	assert.Nil(t, fresh.ID())

	loaded := cluster.MustNew(memberEntity, cluster.WithID(int64(7)))
	assert.True(t, loaded.Persisted())
	assert.Equal(t, int64(7), loaded.ID())
}

func TestRecordNormalize(t *testing.T) {
	t.Parallel()
	article := schema.MustNew("article",
		schema.Fields(
			field.String("title").NotEmpty(),
			field.String("status").Default("draft"),
			field.Int("views").Default(0).Optional(),
		),
	)
	r := cluster.MustNew(article, cluster.WithValues(map[string]any{"title": "On Clusters"}))
	r.Normalize()
	assert.Equal(t, "draft", r.Get("status"))
	assert.Equal(t, int64(0), r.Get("views"))
	assert.Equal(t, "On Clusters", r.Get("title"))

	// Explicit values survive normalization.
	require.NoError(t, r.Set("status", "published"))
	r.Normalize()
	assert.Equal(t, "published", r.Get("status"))
}

func TestRecordRelationPanics(t *testing.T) {
	t.Parallel()
	band := newBand("The Beatles")
	assert.Panics(t, func() { band.Relation("managers") })
}
