// internal/dsl/dsl.go
//
// Package dsl defines the closed set of operation shapes an external
// interpreter may propose. Plans are adversarial input: decoding here only
// establishes shape, every semantic rule lives in the gateway validator.
package dsl

import (
	"encoding/json"
	"fmt"

	"agentgate/internal/contracts"
)

// Step is one decoded plan step. The union is closed: exactly
// ReadOperation, UpdateOperation and InsertOperation implement it.
type Step interface {
	Op() contracts.Operation
	ResourceName() string
	step()
}

// WhereClause is a single predicate.
type WhereClause struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// OrderByClause orders results by one field.
type OrderByClause struct {
	Field string `json:"field"`
	Dir   string `json:"dir,omitempty"`
}

// JoinClause requests one inner join.
type JoinClause struct {
	TargetResource string              `json:"target_resource"`
	On             []contracts.JoinKey `json:"on"`
	Type           string              `json:"type,omitempty"`
}

type ReadOperation struct {
	Resource string          `json:"resource"`
	Select   []string        `json:"select"`
	Where    []WhereClause   `json:"where,omitempty"`
	Joins    []JoinClause    `json:"joins,omitempty"`
	OrderBy  []OrderByClause `json:"order_by,omitempty"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

func (o *ReadOperation) Op() contracts.Operation { return contracts.OpRead }
func (o *ReadOperation) ResourceName() string    { return o.Resource }
func (o *ReadOperation) step()                   {}

type UpdateOperation struct {
	Resource string         `json:"resource"`
	Where    []WhereClause  `json:"where"`
	Update   map[string]any `json:"update"`
	Limit    int            `json:"limit"`
}

func (o *UpdateOperation) Op() contracts.Operation { return contracts.OpUpdate }
func (o *UpdateOperation) ResourceName() string    { return o.Resource }
func (o *UpdateOperation) step()                   {}

type InsertOperation struct {
	Resource string         `json:"resource"`
	Values   map[string]any `json:"values"`
}

func (o *InsertOperation) Op() contracts.Operation { return contracts.OpInsert }
func (o *InsertOperation) ResourceName() string    { return o.Resource }
func (o *InsertOperation) step()                   {}

// UnsupportedOpError marks a step whose "op" tag is outside the union.
// DELETE lands here: the language has no delete shape at all.
type UnsupportedOpError struct {
	OpTag    string
	Resource string
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported operation %q", e.OpTag)
}

const (
	defaultReadLimit   = 100
	defaultUpdateLimit = 1
)

// DecodeStep decodes one JSON step into its concrete shape, dispatching on
// the "op" tag. Absent limits take their defaults; an explicit zero is kept
// so the validator can reject it.
func DecodeStep(raw json.RawMessage) (Step, error) {
	var head struct {
		Op       string `json:"op"`
		Resource string `json:"resource"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode step: %w", err)
	}
	switch contracts.Operation(head.Op) {
	case contracts.OpRead:
		var body struct {
			ReadOperation
			Limit *int `json:"limit"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode READ step: %w", err)
		}
		op := body.ReadOperation
		op.Limit = defaultReadLimit
		if body.Limit != nil {
			op.Limit = *body.Limit
		}
		return &op, nil
	case contracts.OpUpdate:
		var body struct {
			UpdateOperation
			Limit *int `json:"limit"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("decode UPDATE step: %w", err)
		}
		op := body.UpdateOperation
		op.Limit = defaultUpdateLimit
		if body.Limit != nil {
			op.Limit = *body.Limit
		}
		return &op, nil
	case contracts.OpInsert:
		var op InsertOperation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("decode INSERT step: %w", err)
		}
		return &op, nil
	default:
		return nil, &UnsupportedOpError{OpTag: head.Op, Resource: head.Resource}
	}
}

// Plan is a sequence of steps; only single-step plans are executable.
type Plan struct {
	Steps []Step
}

// DecodePlan decodes {"steps": [...]} into a Plan.
func DecodePlan(raw []byte) (*Plan, error) {
	var env struct {
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(env.Steps) == 0 {
		return nil, fmt.Errorf("decode plan: no steps")
	}
	p := &Plan{Steps: make([]Step, 0, len(env.Steps))}
	for _, rs := range env.Steps {
		step, err := DecodeStep(rs)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

// IsWrite reports whether any step mutates data.
func (p *Plan) IsWrite() bool {
	for _, s := range p.Steps {
		if s.Op() != contracts.OpRead {
			return true
		}
	}
	return false
}

// Primary returns the first step.
func (p *Plan) Primary() Step { return p.Steps[0] }
