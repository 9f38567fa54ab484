package cluster_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/cluster"
	"github.com/syssam/cluster/dialect"
	clustersql "github.com/syssam/cluster/dialect/sql"
	"github.com/syssam/cluster/schema"
	"github.com/syssam/cluster/schema/field"
	"github.com/syssam/cluster/schema/rel"
)

// Shared band fixtures: a band owns members (unordered) and albums
// (ordered by sort_order), and each album owns ordered songs.
var (
	songEntity = schema.MustNew("song",
		schema.Fields(
			field.String("name").NotEmpty(),
			field.Int("sort_order").Optional(),
		),
	)

	albumEntity = schema.MustNew("album",
		schema.Fields(
			field.String("name").NotEmpty(),
			field.Time("release_date").Optional(),
			field.Int("sort_order").Optional(),
		),
		schema.Relations(
			rel.To("songs", songEntity).OrderBy("sort_order"),
		),
	)

	memberEntity = schema.MustNew("band_member",
		schema.Fields(
			field.String("name").NotEmpty(),
		),
	)

	bandEntity = schema.MustNew("band",
		schema.Fields(
			field.String("name").NotEmpty(),
		),
		schema.Relations(
			rel.To("members", memberEntity).BackRef("band_id"),
			rel.To("albums", albumEntity).OrderBy("sort_order"),
		),
	)
)

// openStore opens a fresh sqlite-backed store with the fixture tables
// created.
func openStore(t *testing.T) *clustersql.Store {
	t.Helper()
	drv, err := clustersql.Open(dialect.SQLite, filepath.Join(t.TempDir(), "cluster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	store := clustersql.NewStore(drv)
	require.NoError(t, store.CreateTables(context.Background(), bandEntity))
	return store
}

// openCountingStore is openStore with every executed statement
// appended to the returned log.
func openCountingStore(t *testing.T) (*clustersql.Store, *[]string) {
	t.Helper()
	drv, err := clustersql.Open(dialect.SQLite, filepath.Join(t.TempDir(), "cluster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	setup := clustersql.NewStore(drv)
	require.NoError(t, setup.CreateTables(context.Background(), bandEntity))
	var log []string
	debug := dialect.Debug(drv, func(args ...any) {
		for _, a := range args {
			if s, ok := a.(string); ok {
				log = append(log, s)
				return
			}
		}
	})
	return clustersql.NewStore(debug), &log
}

func newMember(name string) *cluster.Record {
	return cluster.MustNew(memberEntity, cluster.WithValues(map[string]any{"name": name}))
}

func newSong(name string) *cluster.Record {
	return cluster.MustNew(songEntity, cluster.WithValues(map[string]any{"name": name}))
}

func newAlbum(name string, songs ...*cluster.Record) *cluster.Record {
	return cluster.MustNew(albumEntity,
		cluster.WithValues(map[string]any{"name": name}),
		cluster.WithChildren("songs", songs...),
	)
}

func newBand(name string, members ...*cluster.Record) *cluster.Record {
	return cluster.MustNew(bandEntity,
		cluster.WithValues(map[string]any{"name": name}),
		cluster.WithChildren("members", members...),
	)
}

// names extracts the name field of each record, in listing order.
func names(records []*cluster.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get("name").(string)
	}
	return out
}
