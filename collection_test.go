package cluster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster"
)

func TestCollectionAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	band := newBand("The Beatles", newMember("John Lennon"))
	members := band.Relation("members")

	require.NoError(t, members.Add(ctx, newMember("Paul McCartney")))
	listing, err := members.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon", "Paul McCartney"}, names(listing))

	t.Run("IdempotentByIdentity", func(t *testing.T) {
		george := cluster.MustNew(memberEntity,
			cluster.WithID(int64(3)),
			cluster.WithValues(map[string]any{"name": "George Harrison"}),
		)
		require.NoError(t, members.Add(ctx, george))
		// Re-adding the same identity replaces in place.
		again := cluster.MustNew(memberEntity,
			cluster.WithID(int64(3)),
			cluster.WithValues(map[string]any{"name": "George Martin"}),
		)
		require.NoError(t, members.Add(ctx, again))
		count, err := members.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		got, err := members.Get(ctx, cluster.IDEQ(int64(3)))
		require.NoError(t, err)
		assert.Equal(t, "George Martin", got.Get("name"))
	})

	t.Run("WrongEntity", func(t *testing.T) {
		err := members.Add(ctx, newSong("Misery"))
		require.Error(t, err)
		assert.True(t, cluster.IsTypeError(err))
		assert.Contains(t, err.Error(), `relation "members"`)
	})
}

func TestCollectionRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	john := newMember("John Lennon")
	band := newBand("The Beatles", john, newMember("Paul McCartney"))
	members := band.Relation("members")

	require.NoError(t, members.Remove(ctx, john))
	listing, err := members.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paul McCartney"}, names(listing))

	// Removing an absent record is a no-op.
	require.NoError(t, members.Remove(ctx, newMember("Stuart Sutcliffe")))
	count, err := members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectionSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"))
	members := band.Relation("members")

	require.NoError(t, members.Set(ctx, newMember("Ringo Starr")))
	listing, err := members.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ringo Starr"}, names(listing))
	assert.True(t, members.Overridden())
}

func TestCollectionOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	album := newAlbum("With the Beatles")
	songs := album.Relation("songs")

	misery := newSong("Misery")
	require.NoError(t, misery.Set("sort_order", int64(2)))
	taste := newSong("A Taste of Honey")
	require.NoError(t, taste.Set("sort_order", int64(1)))
	unordered := newSong("Chains")

	require.NoError(t, songs.Set(ctx, misery, unordered, taste))
	listing, err := songs.All(ctx)
	require.NoError(t, err)
	// Ordered entries first by sort_order, entries without one last.
	assert.Equal(t, []string{"A Taste of Honey", "Misery", "Chains"}, names(listing))
}

func TestCollectionQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	band := newBand("The Beatles",
		newMember("John Lennon"),
		newMember("Paul McCartney"),
		newMember("George Harrison"),
		newMember("Ringo Starr"),
	)
	members := band.Relation("members")

	t.Run("Filter", func(t *testing.T) {
		listing, err := members.Filter(ctx, cluster.FieldContains("name", "George"))
		require.NoError(t, err)
		assert.Equal(t, []string{"George Harrison"}, names(listing))
	})

	t.Run("Exclude", func(t *testing.T) {
		listing, err := members.Exclude(ctx, cluster.FieldHasSuffix("name", "McCartney"))
		require.NoError(t, err)
		assert.Len(t, listing, 3)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := members.Exists(ctx, cluster.FieldEqualFold("name", "ringo starr"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Get", func(t *testing.T) {
		got, err := members.Get(ctx, cluster.FieldEQ("name", "John Lennon"))
		require.NoError(t, err)
		assert.Equal(t, "John Lennon", got.Get("name"))
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := members.Get(ctx, cluster.FieldEQ("name", "Pete Best"))
		require.Error(t, err)
		assert.True(t, cluster.IsNotFound(err))
	})

	t.Run("GetNotSingular", func(t *testing.T) {
		_, err := members.Get(ctx, cluster.FieldHasPrefix("name", ""))
		require.Error(t, err)
		assert.True(t, cluster.IsNotSingular(err))
	})

	t.Run("First", func(t *testing.T) {
		first, err := members.First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "John Lennon", first.Get("name"))
	})
}

func TestCollectionMaterialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"))
	band.Bind(store)
	require.NoError(t, band.Save(ctx))

	loaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	members := loaded.Relation("members")
	assert.False(t, members.Overridden())

	listing, err := members.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon", "Paul McCartney"}, names(listing))
	for _, m := range listing {
		assert.True(t, m.Persisted())
		assert.Equal(t, band.ID(), m.BackRef())
	}

	// Mutation snapshots the live listing before applying.
	require.NoError(t, members.Add(ctx, newMember("Ringo Starr")))
	assert.True(t, members.Overridden())
	count, err := members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
