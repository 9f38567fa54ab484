package cluster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster"
)

func TestTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"))

	tree, err := band.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, "The Beatles", tree["name"])
	assert.NotContains(t, tree, "id")

	members, ok := tree["members"].([]any)
	require.True(t, ok)
	require.Len(t, members, 2)
	first, ok := members[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "John Lennon", first["name"])

	// Undeclared relations never appear; declared empty ones do.
	albums, ok := tree["albums"].([]any)
	require.True(t, ok)
	assert.Empty(t, albums)
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	album := newAlbum("Please Please Me", newSong("I Saw Her Standing There"), newSong("Misery"))
	require.NoError(t, album.Set("release_date", "1963-03-22"))
	band := newBand("The Beatles", newMember("John Lennon"))
	require.NoError(t, band.Relation("albums").Set(ctx, album))

	data, err := band.EncodeJSON(ctx)
	require.NoError(t, err)

	decoded, err := cluster.DecodeJSON(bandEntity, data)
	require.NoError(t, err)
	assert.Equal(t, "The Beatles", decoded.Get("name"))

	albums, err := decoded.Relation("albums").All(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "Please Please Me", albums[0].Get("name"))

	songs, err := albums[0].Relation("songs").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"I Saw Her Standing There", "Misery"}, names(songs))

	// Round-trip again; the representation is stable.
	again, err := decoded.EncodeJSON(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestJSONIdentityRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	john := cluster.MustNew(memberEntity,
		cluster.WithID(int64(101)),
		cluster.WithValues(map[string]any{"name": "John Lennon"}),
	)
	band := cluster.MustNew(bandEntity,
		cluster.WithID(int64(11)),
		cluster.WithValues(map[string]any{"name": "The Beatles"}),
		cluster.WithChildren("members", john),
	)

	data, err := band.EncodeJSON(ctx)
	require.NoError(t, err)
	decoded, err := cluster.DecodeJSON(bandEntity, data)
	require.NoError(t, err)

	// JSON numbers come back as the identity's integer form.
	assert.Equal(t, int64(11), decoded.ID())
	listing, err := decoded.Relation("members").All(ctx)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, int64(101), listing[0].ID())
	assert.True(t, listing[0].Persisted())
}

func TestMsgpackRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	band := newBand("The Beatles", newMember("John Lennon"), newMember("Paul McCartney"))

	data, err := band.EncodeMsgpack(ctx)
	require.NoError(t, err)
	decoded, err := cluster.DecodeMsgpack(bandEntity, data)
	require.NoError(t, err)

	assert.Equal(t, "The Beatles", decoded.Get("name"))
	listing, err := decoded.Relation("members").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon", "Paul McCartney"}, names(listing))
}

func TestDecodeThenSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)

	band := newBand("The Beatles", newMember("John Lennon"))
	data, err := band.EncodeJSON(ctx)
	require.NoError(t, err)

	decoded, err := cluster.DecodeJSON(bandEntity, data)
	require.NoError(t, err)
	require.NoError(t, decoded.SaveTo(ctx, store))

	loaded, err := cluster.Load(ctx, store, bandEntity, decoded.ID())
	require.NoError(t, err)
	listing, err := loaded.Relation("members").All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"John Lennon"}, names(listing))
}
