package sql

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/cluster"
	"github.com/syssam/cluster/dialect"
	"github.com/syssam/cluster/schema"
	"github.com/syssam/cluster/schema/field"
)

// Store implements the cluster.Store contract over a dialect driver.
// All statements run on the store's ExecQuerier; use WithTx to scope a
// store to an ambient transaction so that a whole graph commit can be
// rolled back as one unit.
type Store struct {
	conn    dialect.ExecQuerier
	dialect string
}

// NewStore returns a Store running on the given driver.
func NewStore(drv dialect.Driver) *Store {
	return &Store{conn: drv, dialect: drv.Dialect()}
}

// WithTx returns a copy of the store that runs every statement on tx.
func (s *Store) WithTx(tx dialect.Tx) *Store {
	return &Store{conn: tx, dialect: s.dialect}
}

var _ cluster.Store = (*Store)(nil)

// Insert persists one row and returns its identity. If values carries
// the identity column the given identity is used, otherwise the
// store-assigned identity is returned.
func (s *Store) Insert(ctx context.Context, e *schema.Entity, values map[string]any) (any, error) {
	cols := orderedColumns(e, values)
	args := make([]any, 0, len(cols))
	holders := make([]string, 0, len(cols))
	for i, c := range cols {
		args = append(args, encodeValue(values[c]))
		holders = append(holders, s.placeholder(i))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", e.Table(), strings.Join(cols, ", "), strings.Join(holders, ", "))
	if id, ok := values[e.IDColumn()]; ok {
		if err := s.conn.Exec(ctx, query, args, nil); err != nil {
			return nil, err
		}
		return id, nil
	}
	if s.dialect == dialect.Postgres {
		var rows Rows
		query += " RETURNING " + e.IDColumn()
		if err := s.conn.Query(ctx, query, args, &rows); err != nil {
			return nil, err
		}
		defer rows.Close()
		if !rows.Next() {
			return nil, fmt.Errorf("dialect/sql: insert %s: no id returned", e.Table())
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		return id, rows.Err()
	}
	var res Result
	if err := s.conn.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: insert %s: %w", e.Table(), err)
	}
	return id, nil
}

// Update persists the given column values for the identified row.
func (s *Store) Update(ctx context.Context, e *schema.Entity, id any, values map[string]any) error {
	cols := orderedColumns(e, values)
	args := make([]any, 0, len(cols)+1)
	sets := make([]string, 0, len(cols))
	for i, c := range cols {
		args = append(args, encodeValue(values[c]))
		sets = append(sets, fmt.Sprintf("%s = %s", c, s.placeholder(i)))
	}
	args = append(args, encodeValue(id))
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", e.Table(), strings.Join(sets, ", "), e.IDColumn(), s.placeholder(len(cols)))
	return s.conn.Exec(ctx, query, args, nil)
}

// Delete removes the identified rows. A nil or empty identity list is a no-op.
func (s *Store) Delete(ctx context.Context, e *schema.Entity, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids))
	holders := make([]string, 0, len(ids))
	for i, id := range ids {
		args = append(args, encodeValue(id))
		holders = append(holders, s.placeholder(i))
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", e.Table(), e.IDColumn(), strings.Join(holders, ", "))
	return s.conn.Exec(ctx, query, args, nil)
}

// Get returns the identified row, or a cluster.NotFoundError if it
// does not exist.
func (s *Store) Get(ctx context.Context, e *schema.Entity, id any) (cluster.Row, error) {
	cols := selectColumns(e)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", strings.Join(cols, ", "), e.Table(), e.IDColumn(), s.placeholder(0))
	rows, err := s.queryRows(ctx, e, query, []any{encodeValue(id)}, cols)
	if err != nil {
		return cluster.Row{}, err
	}
	if len(rows) == 0 {
		return cluster.Row{}, cluster.NewNotFoundErrorWithID(e.Name(), id)
	}
	return rows[0], nil
}

// Children returns the rows whose back-reference column equals owner,
// ordered by the given order column when non-empty (identity order
// otherwise).
func (s *Store) Children(ctx context.Context, e *schema.Entity, backref string, owner any, orderBy string) ([]cluster.Row, error) {
	cols := selectColumns(e)
	order := e.IDColumn()
	if orderBy != "" {
		order = orderBy + ", " + e.IDColumn()
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s", strings.Join(cols, ", "), e.Table(), backref, s.placeholder(0), order)
	return s.queryRows(ctx, e, query, []any{encodeValue(owner)}, cols)
}

func (s *Store) queryRows(ctx context.Context, e *schema.Entity, query string, args []any, cols []string) ([]cluster.Row, error) {
	var rows Rows
	if err := s.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []cluster.Row
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := cluster.Row{Values: make(map[string]any, len(cols)-1)}
		for i, c := range cols {
			v := decodeValue(*dest[i].(*any))
			if c == e.IDColumn() {
				row.ID = v
				continue
			}
			row.Values[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// placeholder returns the placeholder for the i-th (zero-based) argument.
func (s *Store) placeholder(i int) string {
	if s.dialect == dialect.Postgres {
		return fmt.Sprintf("$%d", i+1)
	}
	return "?"
}

// selectColumns returns the columns selected for an entity: identity
// first, declared fields after, in declaration order.
func selectColumns(e *schema.Entity) []string {
	cols := []string{e.IDColumn()}
	for _, fd := range e.Fields() {
		cols = append(cols, fd.Column())
	}
	return cols
}

// orderedColumns returns the keys of values in a deterministic order:
// identity, declared fields in declaration order, then any remaining
// columns (back-references) sorted by name.
func orderedColumns(e *schema.Entity, values map[string]any) []string {
	seen := make(map[string]bool, len(values))
	var cols []string
	if _, ok := values[e.IDColumn()]; ok {
		cols = append(cols, e.IDColumn())
		seen[e.IDColumn()] = true
	}
	for _, fd := range e.Fields() {
		if _, ok := values[fd.Column()]; ok {
			cols = append(cols, fd.Column())
			seen[fd.Column()] = true
		}
	}
	var rest []string
	for c := range values {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// encodeValue converts an engine value to its storage form.
func encodeValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return v.String()
	default:
		return v
	}
}

// decodeValue normalizes driver scan results. Typed decoding (time,
// uuid) is the engine's job since it owns the field descriptors.
func decodeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// CreateTables creates the tables for the given entities and,
// recursively, their child entities. Back-reference columns are derived
// from the relations declared on the given entities. Intended for
// bootstrap and tests; production deployments usually own their
// migrations.
func (s *Store) CreateTables(ctx context.Context, entities ...*schema.Entity) error {
	tables := make(map[string]*schema.Entity)
	backrefs := make(map[string][]string)
	var walk func(e *schema.Entity)
	walk = func(e *schema.Entity) {
		if _, ok := tables[e.Table()]; ok {
			return
		}
		tables[e.Table()] = e
		for _, rd := range e.Relations() {
			child, _ := e.ChildOf(rd.Name)
			backrefs[child.Table()] = append(backrefs[child.Table()], rd.BackRef)
			walk(child)
		}
	}
	for _, e := range entities {
		walk(e)
	}
	// Deterministic creation order.
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := tables[name]
		cols := []string{fmt.Sprintf("%s %s", e.IDColumn(), s.idColumnType())}
		for _, fd := range e.Fields() {
			cols = append(cols, fmt.Sprintf("%s %s", fd.Column(), s.columnType(fd.Type)))
		}
		seen := make(map[string]bool)
		for _, fd := range e.Fields() {
			seen[fd.Column()] = true
		}
		refs := backrefs[name]
		sort.Strings(refs)
		for _, ref := range refs {
			if !seen[ref] {
				cols = append(cols, fmt.Sprintf("%s BIGINT", ref))
				seen[ref] = true
			}
		}
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(cols, ", "))
		if err := s.conn.Exec(ctx, query, []any{}, nil); err != nil {
			return fmt.Errorf("dialect/sql: create table %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) idColumnType() string {
	switch s.dialect {
	case dialect.Postgres:
		return "BIGSERIAL PRIMARY KEY"
	case dialect.MySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (s *Store) columnType(t field.Type) string {
	switch t {
	case field.TypeInt:
		return "BIGINT"
	case field.TypeFloat:
		return "DOUBLE PRECISION"
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeTime:
		if s.dialect == dialect.MySQL {
			return "VARCHAR(64)"
		}
		return "TEXT"
	case field.TypeUUID:
		if s.dialect == dialect.MySQL {
			return "CHAR(36)"
		}
		return "TEXT"
	default:
		if s.dialect == dialect.MySQL {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}
