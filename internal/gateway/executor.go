// internal/gateway/executor.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"agentgate/internal/contracts"
	"agentgate/internal/data"
	"agentgate/internal/dsl"
)

// StoreFactory builds the data-access handle for one resource.
type StoreFactory func(resource, table string) data.Store

// Result is the successful outcome of one executed step.
type Result struct {
	Operation string
	Resource  string
	Rows      []map[string]any
	Count     int
	Page      *Page
}

// ExecutionError carries a taxonomy class out of the executor.
type ExecutionError struct {
	Type    ErrorType
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// Executor maps validated steps onto per-resource stores. Handles are
// created on first use and cached for the process lifetime; the cache is
// purely a performance detail, authorization was settled before execution.
type Executor struct {
	factory StoreFactory
	tables  map[string]string
	log     *zap.SugaredLogger

	mu     sync.Mutex
	stores map[string]data.Store
}

func NewExecutor(factory StoreFactory, tables map[string]string, log *zap.SugaredLogger) *Executor {
	return &Executor{
		factory: factory,
		tables:  tables,
		log:     log,
		stores:  map[string]data.Store{},
	}
}

func (e *Executor) store(resource string) (data.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stores[resource]; ok {
		return s, nil
	}
	table, ok := e.tables[resource]
	if !ok {
		return nil, fmt.Errorf("no table mapping for resource %s", resource)
	}
	s := e.factory(resource, table)
	e.stores[resource] = s
	return s, nil
}

// Execute runs one already-validated step.
func (e *Executor) Execute(ctx context.Context, step dsl.Step, filtered map[string]*contracts.ResourceContract) (*Result, *ExecutionError) {
	contract := filtered[step.ResourceName()]
	store, err := e.store(step.ResourceName())
	if err != nil {
		e.log.Errorw("store init failed", "resource", step.ResourceName(), "err", err)
		return nil, &ExecutionError{Type: ErrExecutionFailed, Message: "operation failed"}
	}

	switch op := step.(type) {
	case *dsl.ReadOperation:
		return e.executeRead(ctx, op, contract, store)
	case *dsl.UpdateOperation:
		return e.executeUpdate(ctx, op, store)
	case *dsl.InsertOperation:
		return e.executeInsert(ctx, op, store)
	default:
		return nil, &ExecutionError{Type: ErrExecutionFailed, Message: "operation failed"}
	}
}

func (e *Executor) executeRead(ctx context.Context, op *dsl.ReadOperation, contract *contracts.ResourceContract, store data.Store) (*Result, *ExecutionError) {
	q := data.ReadQuery{
		Select: op.Select,
		Limit:  op.Limit,
		Offset: op.Offset,
	}
	for _, w := range op.Where {
		q.Where = append(q.Where, data.Predicate{Field: w.Field, Op: w.Op, Value: w.Value})
	}
	for _, j := range op.Joins {
		q.Joins = append(q.Joins, data.Join{
			TargetTable: j.TargetResource,
			LeftField:   j.On[0].LeftField,
			RightField:  j.On[0].RightField,
		})
	}
	for _, ob := range op.OrderBy {
		q.OrderBy = append(q.OrderBy, data.Order{Field: ob.Field, Desc: ob.Dir == "desc"})
	}

	rows, err := store.Read(ctx, q)
	if err != nil {
		return nil, e.classify(op.Resource, "READ", err)
	}
	res := &Result{Operation: "READ", Resource: op.Resource, Rows: rows, Count: len(rows)}
	if op.Offset > 0 || op.Limit < contract.Limits.MaxRows {
		res.Page = &Page{Limit: op.Limit, Offset: op.Offset}
	}
	return res, nil
}

// executeUpdate forwards the whole predicate list; validation pinned the
// primary key, and any extra guards must reach the store untouched.
func (e *Executor) executeUpdate(ctx context.Context, op *dsl.UpdateOperation, store data.Store) (*Result, *ExecutionError) {
	where := make([]data.Predicate, 0, len(op.Where))
	for _, w := range op.Where {
		where = append(where, data.Predicate{Field: w.Field, Op: w.Op, Value: w.Value})
	}
	row, err := store.Update(ctx, where, op.Update)
	if err != nil {
		return nil, e.classify(op.Resource, "UPDATE", err)
	}
	return &Result{Operation: "UPDATE", Resource: op.Resource, Rows: []map[string]any{row}, Count: 1}, nil
}

func (e *Executor) executeInsert(ctx context.Context, op *dsl.InsertOperation, store data.Store) (*Result, *ExecutionError) {
	row, err := store.Create(ctx, op.Values)
	if err != nil {
		return nil, e.classify(op.Resource, "INSERT", err)
	}
	return &Result{Operation: "INSERT", Resource: op.Resource, Rows: []map[string]any{row}, Count: 1}, nil
}

// classify folds store failures into the response taxonomy. Anything not
// recognized, timeouts included, becomes a generic execution failure with
// no backend detail exposed.
func (e *Executor) classify(resource, op string, err error) *ExecutionError {
	switch {
	case errors.Is(err, data.ErrNotFound):
		return &ExecutionError{Type: ErrResourceNotFound, Message: fmt.Sprintf("No matching %s row", resource)}
	case errors.Is(err, data.ErrConflict):
		return &ExecutionError{Type: ErrConflict, Message: "Operation conflicts with an existing record"}
	case errors.Is(err, data.ErrInvalidReference):
		return &ExecutionError{Type: ErrInvalidQuery, Message: "Operation references a nonexistent record"}
	default:
		e.log.Errorw("execution failed", "resource", resource, "op", op, "err", err)
		return &ExecutionError{Type: ErrExecutionFailed, Message: "operation failed"}
	}
}
