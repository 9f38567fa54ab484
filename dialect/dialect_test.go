package dialect_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster/dialect"
)

type recordingDriver struct {
	execs, queries []string
}

func (d *recordingDriver) Exec(_ context.Context, query string, _, _ any) error {
	d.execs = append(d.execs, query)
	return nil
}

func (d *recordingDriver) Query(_ context.Context, query string, _, _ any) error {
	d.queries = append(d.queries, query)
	return nil
}

func (d *recordingDriver) Tx(context.Context) (dialect.Tx, error) { return dialect.NopTx(d), nil }
func (d *recordingDriver) Close() error                           { return nil }
func (d *recordingDriver) Dialect() string                        { return dialect.SQLite }

func TestDebugDriver(t *testing.T) {
	t.Parallel()
	var logged []string
	inner := &recordingDriver{}
	drv := dialect.Debug(inner, func(args ...any) {
		for _, a := range args {
			if s, ok := a.(string); ok {
				logged = append(logged, s)
			}
		}
	})

	ctx := context.Background()
	require.NoError(t, drv.Exec(ctx, "INSERT INTO bands DEFAULT VALUES", []any{}, nil))
	require.NoError(t, drv.Query(ctx, "SELECT * FROM bands", []any{}, nil))

	assert.Equal(t, []string{"INSERT INTO bands DEFAULT VALUES"}, inner.execs)
	assert.Equal(t, []string{"SELECT * FROM bands"}, inner.queries)
	require.Len(t, logged, 2)
	assert.True(t, strings.Contains(logged[0], "INSERT INTO bands"))
	assert.True(t, strings.Contains(logged[1], "SELECT * FROM bands"))
}

func TestDebugWithContext(t *testing.T) {
	t.Parallel()
	type ctxKey struct{}
	var seen []any
	inner := &recordingDriver{}
	drv := dialect.DebugWithContext(inner, func(ctx context.Context, args ...any) {
		seen = append(seen, ctx.Value(ctxKey{}))
		seen = append(seen, args...)
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
	require.NoError(t, drv.Exec(ctx, "DELETE FROM bands", []any{}, nil))

	assert.Equal(t, []string{"DELETE FROM bands"}, inner.execs)
	require.Len(t, seen, 2)
	assert.Equal(t, "req-42", seen[0])
	s, ok := seen[1].(string)
	require.True(t, ok)
	assert.True(t, strings.Contains(s, "DELETE FROM bands"))
}

func TestDebugTx(t *testing.T) {
	t.Parallel()
	var logged int
	inner := &recordingDriver{}
	drv := dialect.Debug(inner, func(...any) { logged++ })

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "UPDATE bands SET name = ?", []any{"x"}, nil))
	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"UPDATE bands SET name = ?"}, inner.execs)
	assert.GreaterOrEqual(t, logged, 1)
}