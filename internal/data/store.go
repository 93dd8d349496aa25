// internal/data/store.go
//
// Package data is the per-resource access layer under the executor. It
// receives only validated input; its job is SQL shaping and backend error
// classification, not authorization.
package data

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("row not found")
	ErrConflict         = errors.New("uniqueness conflict")
	ErrInvalidReference = errors.New("invalid reference")
)

// Predicate is one validated filter condition.
type Predicate struct {
	Field string
	Op    string
	Value any
}

// Join is one validated inner join.
type Join struct {
	TargetTable string
	LeftField   string
	RightField  string
}

// Order is one validated ordering term.
type Order struct {
	Field string
	Desc  bool
}

// ReadQuery is the full shape of one read.
type ReadQuery struct {
	Select  []string
	Where   []Predicate
	Joins   []Join
	OrderBy []Order
	Limit   int
	Offset  int
}

// Store is the capability the executor holds per resource. Update applies
// every predicate it is given; the caller guarantees one of them pins the
// primary key, but guard predicates beyond it must still restrict the match.
type Store interface {
	Read(ctx context.Context, q ReadQuery) ([]map[string]any, error)
	Update(ctx context.Context, where []Predicate, fields map[string]any) (map[string]any, error)
	Create(ctx context.Context, values map[string]any) (map[string]any, error)
}
