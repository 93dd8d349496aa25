// internal/data/memstore.go
package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemBackend holds every table of the process-local store. It backs the
// gateway when no DATABASE_URL is configured; rows live only as long as the
// process, which is the point for dev and tests.
type MemBackend struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
}

func NewMemBackend() *MemBackend {
	return &MemBackend{tables: map[string][]map[string]any{}}
}

// Store returns the Store view over one table. pkField names the column
// that gets a generated identifier on Create.
func (b *MemBackend) Store(table, pkField string) Store {
	return &MemStore{b: b, table: table, pk: pkField}
}

// MemStore implements Store over one MemBackend table with the same
// observable semantics as SQLStore: inner joins multiply rows, every update
// predicate restricts the match, created_at is stamped when absent.
type MemStore struct {
	b     *MemBackend
	table string
	pk    string
}

func (m *MemStore) Read(ctx context.Context, q ReadQuery) ([]map[string]any, error) {
	m.b.mu.RLock()
	defer m.b.mu.RUnlock()
	matched := []map[string]any{}
	for _, row := range m.b.tables[m.table] {
		ok, err := rowMatches(row, q.Where)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for i := 0; i < m.joinMultiplicity(row, q.Joins); i++ {
			matched = append(matched, row)
		}
	}
	sortRows(matched, q.OrderBy)
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]map[string]any, len(matched))
	for i, row := range matched {
		out[i] = project(row, q.Select)
	}
	return out, nil
}

func (m *MemStore) Update(ctx context.Context, where []Predicate, fields map[string]any) (map[string]any, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	for _, row := range m.b.tables[m.table] {
		ok, err := rowMatches(row, where)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		row["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		return copyRow(row), nil
	}
	return nil, ErrNotFound
}

func (m *MemStore) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	row := copyRow(values)
	if m.pk != "" {
		if _, ok := row[m.pk]; !ok {
			row[m.pk] = uuid.NewString()
		}
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	m.b.tables[m.table] = append(m.b.tables[m.table], row)
	return copyRow(row), nil
}

// joinMultiplicity mirrors INNER JOIN row fan-out: zero matches drop the
// base row, n matches repeat it n times per join.
func (m *MemStore) joinMultiplicity(row map[string]any, joins []Join) int {
	reps := 1
	for _, j := range joins {
		n := 0
		for _, target := range m.b.tables[j.TargetTable] {
			if compareValues(row[j.LeftField], target[j.RightField]) == 0 {
				n++
			}
		}
		if n == 0 {
			return 0
		}
		reps *= n
	}
	return reps
}

func rowMatches(row map[string]any, where []Predicate) (bool, error) {
	for _, p := range where {
		ok, err := evalPredicate(row[p.Field], p.Op, p.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalPredicate(have any, op string, want any) (bool, error) {
	switch op {
	case "=":
		return compareValues(have, want) == 0, nil
	case "!=":
		return compareValues(have, want) != 0, nil
	case ">":
		return compareValues(have, want) > 0, nil
	case ">=":
		return compareValues(have, want) >= 0, nil
	case "<":
		return compareValues(have, want) < 0, nil
	case "<=":
		return compareValues(have, want) <= 0, nil
	case "IN":
		list, ok := want.([]any)
		if !ok {
			// a scalar IN degrades to equality
			return compareValues(have, want) == 0, nil
		}
		for _, v := range list {
			if compareValues(have, v) == 0 {
				return true, nil
			}
		}
		return false, nil
	case "BETWEEN":
		list, ok := want.([]any)
		if !ok || len(list) != 2 {
			return false, fmt.Errorf("BETWEEN requires two values, got %v", want)
		}
		return compareValues(have, list[0]) >= 0 && compareValues(have, list[1]) <= 0, nil
	case "LIKE":
		return likeMatch(stringOf(have), stringOf(want), false), nil
	case "ILIKE":
		return likeMatch(stringOf(have), stringOf(want), true), nil
	default:
		return false, fmt.Errorf("unsupported operator %s", op)
	}
}

// compareValues orders two values numerically when both sides are numbers,
// lexically otherwise. RFC 3339 timestamps order correctly as strings.
func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(stringOf(a), stringOf(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// likeMatch evaluates a SQL LIKE pattern with % wildcards only.
func likeMatch(s, pattern string, fold bool) bool {
	if fold {
		s, pattern = strings.ToLower(s), strings.ToLower(pattern)
	}
	parts := strings.Split(pattern, "%")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	if len(parts) == 1 {
		return s == ""
	}
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

func sortRows(rows []map[string]any, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			c := compareValues(rows[i][o.Field], rows[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func project(row map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return copyRow(row)
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f] = row[f]
	}
	return out
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
