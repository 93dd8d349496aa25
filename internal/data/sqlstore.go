// internal/data/sqlstore.go
package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SQLStore runs validated operations against one PostgreSQL table. Field
// and operator strings have already passed contract validation, so they
// are safe to interpolate; values always travel as bind parameters.
type SQLStore struct {
	dbPool *pgxpool.Pool
	table  string
	log    *zap.SugaredLogger
}

func NewSQLStore(dbPool *pgxpool.Pool, table string, log *zap.SugaredLogger) *SQLStore {
	return &SQLStore{dbPool: dbPool, table: table, log: log}
}

func (s *SQLStore) Read(ctx context.Context, q ReadQuery) ([]map[string]any, error) {
	var (
		sb     strings.Builder
		params []any
	)
	qualify := len(q.Joins) > 0
	cols := make([]string, len(q.Select))
	for i, f := range q.Select {
		cols[i] = s.column(f, qualify)
	}
	sb.WriteString("SELECT " + strings.Join(cols, ", ") + " FROM " + s.table)
	for _, j := range q.Joins {
		fmt.Fprintf(&sb, " INNER JOIN %s ON %s.%s = %s.%s",
			j.TargetTable, s.table, j.LeftField, j.TargetTable, j.RightField)
	}
	if len(q.Where) > 0 {
		parts := make([]string, 0, len(q.Where))
		for _, p := range q.Where {
			sql, vals, err := predicateSQL(s.column(p.Field, qualify), p.Op, p.Value, len(params)+1)
			if err != nil {
				return nil, err
			}
			parts = append(parts, sql)
			params = append(params, vals...)
		}
		sb.WriteString(" WHERE " + strings.Join(parts, " AND "))
	}
	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = s.column(o.Field, qualify) + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	params = append(params, q.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(params))
	if q.Offset > 0 {
		params = append(params, q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(params))
	}

	s.log.Debugw("read", "table", s.table, "sql", sb.String())
	rows, err := s.dbPool.Query(ctx, sb.String(), params...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		m, err := rowMap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, where []Predicate, fields map[string]any) (map[string]any, error) {
	sql, params, err := updateSQL(s.table, where, fields)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("update", "table", s.table, "sql", sql)
	rows, err := s.dbPool.Query(ctx, sql, params...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return nil, ErrNotFound
	}
	return rowMap(rows)
}

func (s *SQLStore) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	names := sortedKeys(values)
	cols := make([]string, 0, len(names)+1)
	placeholders := make([]string, 0, len(names)+1)
	params := make([]any, 0, len(names))
	for _, name := range names {
		params = append(params, values[name])
		cols = append(cols, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(params)))
	}
	if _, ok := values["created_at"]; !ok {
		cols = append(cols, "created_at")
		placeholders = append(placeholders, "NOW()")
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	s.log.Debugw("create", "table", s.table, "sql", sql)
	rows, err := s.dbPool.Query(ctx, sql, params...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return nil, errors.New("insert returned no row")
	}
	return rowMap(rows)
}

func (s *SQLStore) column(field string, qualify bool) string {
	if qualify {
		return s.table + "." + field
	}
	return field
}

// updateSQL renders the full UPDATE statement. Every predicate lands in the
// WHERE clause, so a guard like status = 'OPEN' next to the primary key turns
// the statement into a conditional update that touches nothing when stale.
func updateSQL(table string, where []Predicate, fields map[string]any) (string, []any, error) {
	sets := make([]string, 0, len(fields))
	params := make([]any, 0, len(fields)+len(where))
	for _, name := range sortedKeys(fields) {
		params = append(params, fields[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(params)))
	}
	conds := make([]string, 0, len(where))
	for _, p := range where {
		sql, vals, err := predicateSQL(p.Field, p.Op, p.Value, len(params)+1)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, sql)
		params = append(params, vals...)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		table, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	return sql, params, nil
}

// predicateSQL renders one predicate starting at bind position start.
// IN expands to one placeholder per element; BETWEEN takes exactly two.
func predicateSQL(col, op string, value any, start int) (string, []any, error) {
	switch op {
	case "IN":
		list, ok := value.([]any)
		if !ok || len(list) == 0 {
			// a scalar IN degrades to equality
			return fmt.Sprintf("%s = $%d", col, start), []any{value}, nil
		}
		placeholders := make([]string, len(list))
		for i := range list {
			placeholders[i] = fmt.Sprintf("$%d", start+i)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), list, nil
	case "BETWEEN":
		list, ok := value.([]any)
		if !ok || len(list) != 2 {
			return "", nil, fmt.Errorf("BETWEEN requires two values, got %v", value)
		}
		return fmt.Sprintf("%s BETWEEN $%d AND $%d", col, start, start+1), list, nil
	default:
		return fmt.Sprintf("%s %s $%d", col, op, start), []any{value}, nil
	}
}

// rowMap turns the current row into a JSON-ready map.
func rowMap(rows pgx.Rows) (map[string]any, error) {
	vals, err := rows.Values()
	if err != nil {
		return nil, err
	}
	fds := rows.FieldDescriptions()
	m := make(map[string]any, len(fds))
	for i, fd := range fds {
		v := vals[i]
		switch t := v.(type) {
		case time.Time:
			m[string(fd.Name)] = t.Format(time.RFC3339Nano)
		case [16]byte:
			m[string(fd.Name)] = uuid.UUID(t).String()
		default:
			m[string(fd.Name)] = v
		}
	}
	return m, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// classify maps backend failures onto the store's error set.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		}
	}
	return err
}
