package cluster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster"
)

func TestSaveGraph(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	please := newAlbum("Please Please Me", newSong("I Saw Her Standing There"), newSong("Misery"))
	require.NoError(t, please.Set("release_date", "1963-03-22"))
	with := newAlbum("With the Beatles", newSong("It Won't Be Long"))
	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"))
	require.NoError(t, band.Relation("albums").Set(ctx, please, with))

	require.NoError(t, band.SaveTo(ctx, store))
	require.True(t, band.Persisted())

	loaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	assert.Equal(t, "The Beatles", loaded.Get("name"))

	members, err := loaded.Relation("members").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon", "Paul McCartney"}, names(members))

	albums, err := loaded.Relation("albums").All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Please Please Me", "With the Beatles"}, names(albums))
	// Listing positions are persisted as 1-based order values.
	assert.Equal(t, int64(1), albums[0].Get("sort_order"))
	assert.Equal(t, int64(2), albums[1].Get("sort_order"))

	songs, err := albums[0].Relation("songs").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"I Saw Her Standing There", "Misery"}, names(songs))
	for _, s := range songs {
		assert.Equal(t, albums[0].ID(), s.BackRef())
	}
}

func TestSaveIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, log := openCountingStore(t)

	band := newBand("The Beatles", newMember("John Lennon"))
	require.NoError(t, band.SaveTo(ctx, store))

	// A second save of an untouched graph has nothing to write: the
	// root snapshot is unchanged and every collection is back in its
	// materialized state.
	before := len(*log)
	require.NoError(t, band.Save(ctx))
	assert.Equal(t, before, len(*log), "unchanged graph issued statements: %v", (*log)[before:])

	// Touching one field writes exactly that row again.
	require.NoError(t, band.Set("name", "The Quarrymen"))
	before = len(*log)
	require.NoError(t, band.Save(ctx))
	assert.Equal(t, before+1, len(*log))
}

func TestSaveReconcilesRemovals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"), newMember("Pete Best"))
	require.NoError(t, band.SaveTo(ctx, store))

	loaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	members := loaded.Relation("members")
	pete, err := members.Get(ctx, cluster.FieldEQ("name", "Pete Best"))
	require.NoError(t, err)
	require.NoError(t, members.Remove(ctx, pete))
	require.NoError(t, members.Add(ctx, newMember("Ringo Starr")))
	require.NoError(t, loaded.Save(ctx))

	reloaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	listing, err := reloaded.Relation("members").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon", "Paul McCartney", "Ringo Starr"}, names(listing))
}

func TestSaveReplaceCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	band := newBand("The Beatles")
	require.NoError(t, band.Relation("albums").Set(ctx,
		newAlbum("Please Please Me", newSong("Misery"), newSong("Chains")),
	))
	require.NoError(t, band.SaveTo(ctx, store))

	loaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	old, err := loaded.Relation("albums").First(ctx)
	require.NoError(t, err)
	require.NoError(t, loaded.Relation("albums").Set(ctx, newAlbum("Revolver", newSong("Taxman"))))
	require.NoError(t, loaded.Save(ctx))

	reloaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	albums, err := reloaded.Relation("albums").All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Revolver"}, names(albums))

	// The replaced album's songs went with it.
	orphan := cluster.MustNew(albumEntity, cluster.WithID(old.ID()), cluster.WithStore(store))
	songs, err := orphan.Relation("songs").All(ctx)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestSaveReordersListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	album := newAlbum("Please Please Me", newSong("Misery"), newSong("Chains"), newSong("Boys"))
	band := newBand("The Beatles")
	require.NoError(t, band.Relation("albums").Set(ctx, album))
	require.NoError(t, band.SaveTo(ctx, store))

	loaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	albums, err := loaded.Relation("albums").All(ctx)
	require.NoError(t, err)
	songs := albums[0].Relation("songs")
	listing, err := songs.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Misery", "Chains", "Boys"}, names(listing))

	// Reverse by rewriting the order field; the save resequences.
	// Saving the album record commits its own subtree.
	for i, s := range listing {
		require.NoError(t, s.Set("sort_order", int64(len(listing)-i)))
	}
	require.NoError(t, songs.Set(ctx, listing...))
	require.NoError(t, albums[0].Save(ctx))

	reloaded, err := cluster.Load(ctx, store, bandEntity, band.ID())
	require.NoError(t, err)
	albums, err = reloaded.Relation("albums").All(ctx)
	require.NoError(t, err)
	listing, err = albums[0].Relation("songs").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boys", "Chains", "Misery"}, names(listing))
	assert.Equal(t, int64(1), listing[0].Get("sort_order"))
	assert.Equal(t, int64(3), listing[2].Get("sort_order"))
}

func TestSaveWithoutStore(t *testing.T) {
	t.Parallel()
	band := newBand("The Beatles")
	err := band.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrNoStore)
}

func TestSaveExplicitIdentities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	// A graph assembled with caller-chosen identities, never loaded
	// from this store. Its children must be inserted with those
	// identities kept.
	john := cluster.MustNew(memberEntity,
		cluster.WithID(int64(101)),
		cluster.WithValues(map[string]any{"name": "John Lennon"}),
	)
	band := cluster.MustNew(bandEntity,
		cluster.WithID(int64(11)),
		cluster.WithValues(map[string]any{"name": "The Beatles"}),
		cluster.WithChildren("members", john),
	)
	require.NoError(t, band.SaveTo(ctx, store))

	loaded, err := cluster.Load(ctx, store, bandEntity, int64(11))
	require.NoError(t, err)
	listing, err := loaded.Relation("members").All(ctx)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, int64(101), listing[0].ID())
}
