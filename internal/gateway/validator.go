// internal/gateway/validator.go
package gateway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentgate/internal/contracts"
	"agentgate/internal/dsl"
)

// ValidationError is the verdict for a rejected plan.
type ValidationError struct {
	Type     ErrorType
	Message  string
	Field    string
	Resource string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(resource, field, format string, args ...any) *ValidationError {
	return &ValidationError{Type: ErrInvalidQuery, Message: fmt.Sprintf(format, args...), Field: field, Resource: resource}
}

// Validate checks one plan step against the caller's filtered contract set.
// Checks run in a fixed order and short-circuit on the first failure; nil
// means accepted. Validation is pure and never touches the store.
func Validate(step dsl.Step, filtered map[string]*contracts.ResourceContract) *ValidationError {
	resource := step.ResourceName()
	contract, ok := filtered[resource]
	if !ok {
		return &ValidationError{
			Type:     ErrResourceNotFound,
			Message:  fmt.Sprintf("Resource not found: %s", resource),
			Resource: resource,
		}
	}
	if !contract.OperationAllowed(step.Op()) {
		return &ValidationError{
			Type:     ErrUnauthorizedOperation,
			Message:  fmt.Sprintf("%s operation not allowed on %s", step.Op(), resource),
			Resource: resource,
		}
	}

	switch op := step.(type) {
	case *dsl.ReadOperation:
		return validateRead(op, contract, filtered)
	case *dsl.UpdateOperation:
		return validateUpdate(op, contract)
	case *dsl.InsertOperation:
		return validateInsert(op, contract)
	default:
		return &ValidationError{
			Type:     ErrUnauthorizedOperation,
			Message:  fmt.Sprintf("Unknown operation on %s", resource),
			Resource: resource,
		}
	}
}

func validateRead(op *dsl.ReadOperation, contract *contracts.ResourceContract, filtered map[string]*contracts.ResourceContract) *ValidationError {
	if len(op.Select) == 0 {
		return invalid(op.Resource, "", "SELECT list cannot be empty")
	}
	for _, name := range op.Select {
		if verr := readableField(contract, name); verr != nil {
			return verr
		}
	}
	if verr := validateWhere(op.Where, contract); verr != nil {
		return verr
	}
	for _, ob := range op.OrderBy {
		if !orderAllowed(contract, ob.Field) {
			return invalid(op.Resource, ob.Field, "Field not allowed in ORDER BY: %s", ob.Field)
		}
		if ob.Dir != "" && ob.Dir != "asc" && ob.Dir != "desc" {
			return invalid(op.Resource, ob.Field, "Invalid sort direction: %s", ob.Dir)
		}
	}
	if verr := validateJoins(op.Joins, contract, filtered); verr != nil {
		return verr
	}
	if op.Limit <= 0 {
		return invalid(op.Resource, "", "Limit must be positive: %d", op.Limit)
	}
	if op.Limit > contract.Limits.MaxRows {
		return invalid(op.Resource, "", "Limit exceeds maximum: %d > %d", op.Limit, contract.Limits.MaxRows)
	}
	if op.Offset < 0 {
		return invalid(op.Resource, "", "Offset cannot be negative: %d", op.Offset)
	}
	return nil
}

func validateUpdate(op *dsl.UpdateOperation, contract *contracts.ResourceContract) *ValidationError {
	if op.Limit != 1 {
		return invalid(op.Resource, "", "UPDATE limit must be exactly 1, got: %d", op.Limit)
	}
	if len(op.Where) == 0 {
		return invalid(op.Resource, "", "UPDATE operations must include WHERE clause with primary key")
	}
	pk := contract.PrimaryKeyField()
	if pk == "" {
		return invalid(op.Resource, "", "Cannot identify primary key field for %s", op.Resource)
	}
	found := false
	for _, w := range op.Where {
		if w.Field == pk && w.Op == string(contracts.OpEq) {
			found = true
			break
		}
	}
	if !found {
		return invalid(op.Resource, pk, "UPDATE must include primary key equality: %s = value", pk)
	}
	if verr := validateWhere(op.Where, contract); verr != nil {
		return verr
	}
	if len(op.Update) == 0 {
		return invalid(op.Resource, "", "UPDATE must set at least one field")
	}
	if len(op.Update) > contract.Limits.MaxUpdateFields {
		return invalid(op.Resource, "", "Too many update fields: %d > %d", len(op.Update), contract.Limits.MaxUpdateFields)
	}
	for name, value := range op.Update {
		if verr := writableField(contract, name); verr != nil {
			return verr
		}
		if verr := validateValue(contract, name, value); verr != nil {
			return verr
		}
	}
	return nil
}

func validateInsert(op *dsl.InsertOperation, contract *contracts.ResourceContract) *ValidationError {
	pk := contract.PrimaryKeyField()
	if pk != "" {
		if _, ok := op.Values[pk]; ok {
			return invalid(op.Resource, pk, "Cannot specify primary key field %s in INSERT (auto-generated)", pk)
		}
	}
	for name, value := range op.Values {
		if verr := writableField(contract, name); verr != nil {
			return verr
		}
		if verr := validateValue(contract, name, value); verr != nil {
			return verr
		}
	}
	// Required non-nullable fields must be present; server-managed
	// timestamps are exempt.
	for _, f := range contract.Fields {
		if f.Nullable || !f.Writable || f.Name == pk {
			continue
		}
		if f.Name == "created_at" || f.Name == "updated_at" {
			continue
		}
		if _, ok := op.Values[f.Name]; !ok {
			return invalid(op.Resource, f.Name, "Required field missing: %s", f.Name)
		}
	}
	return nil
}

func validateWhere(where []dsl.WhereClause, contract *contracts.ResourceContract) *ValidationError {
	if len(where) > contract.Limits.MaxPredicates {
		return invalid(contract.Resource, "", "Too many predicates: %d > %d", len(where), contract.Limits.MaxPredicates)
	}
	for _, w := range where {
		if verr := readableField(contract, w.Field); verr != nil {
			return verr
		}
		allowed := false
		for _, op := range contract.AllowedOperators(w.Field) {
			if string(op) == w.Op {
				allowed = true
				break
			}
		}
		if !allowed {
			return invalid(contract.Resource, w.Field, "Operator %s not allowed for field %s", w.Op, w.Field)
		}
		if w.Op == string(contracts.OpBetween) {
			list, ok := w.Value.([]any)
			if !ok || len(list) != 2 {
				return invalid(contract.Resource, w.Field, "BETWEEN requires exactly two values, got: %v", w.Value)
			}
		}
		values := []any{w.Value}
		if list, ok := w.Value.([]any); ok && (w.Op == string(contracts.OpIn) || w.Op == string(contracts.OpBetween)) {
			values = list
		}
		for _, v := range values {
			if verr := validateValue(contract, w.Field, v); verr != nil {
				return verr
			}
		}
	}
	return nil
}

func validateJoins(joins []dsl.JoinClause, contract *contracts.ResourceContract, filtered map[string]*contracts.ResourceContract) *ValidationError {
	if len(joins) > contract.Limits.MaxJoins {
		return invalid(contract.Resource, "", "Too many joins: %d > %d", len(joins), contract.Limits.MaxJoins)
	}
	for _, j := range joins {
		target, ok := filtered[j.TargetResource]
		if !ok {
			return &ValidationError{
				Type:     ErrResourceNotFound,
				Message:  fmt.Sprintf("JOIN target resource not found: %s", j.TargetResource),
				Resource: contract.Resource,
			}
		}
		if j.Type != "" && j.Type != "inner" {
			return invalid(contract.Resource, "", "JOIN type not supported: %s. Only 'inner' joins are allowed", j.Type)
		}
		if !contract.JoinAllowed(j.TargetResource, j.On) {
			return &ValidationError{
				Type:     ErrUnauthorizedOperation,
				Message:  fmt.Sprintf("JOIN to %s not allowed by contract", j.TargetResource),
				Resource: contract.Resource,
			}
		}
		for _, key := range j.On {
			if verr := readableField(contract, key.LeftField); verr != nil {
				return verr
			}
			if verr := readableField(target, key.RightField); verr != nil {
				return verr
			}
		}
	}
	return nil
}

func readableField(contract *contracts.ResourceContract, name string) *ValidationError {
	f := contract.Field(name)
	if f == nil || !f.Readable {
		return &ValidationError{
			Type:     ErrUnauthorizedField,
			Message:  fmt.Sprintf("Field not readable: %s", name),
			Field:    name,
			Resource: contract.Resource,
		}
	}
	return nil
}

func writableField(contract *contracts.ResourceContract, name string) *ValidationError {
	f := contract.Field(name)
	if f == nil || !f.Writable {
		return &ValidationError{
			Type:     ErrUnauthorizedField,
			Message:  fmt.Sprintf("Field not writable: %s", name),
			Field:    name,
			Resource: contract.Resource,
		}
	}
	return nil
}

func orderAllowed(contract *contracts.ResourceContract, name string) bool {
	for _, f := range contract.OrderAllowed {
		if f == name {
			return true
		}
	}
	return false
}

// validateValue checks a single value against the field's enum domain and
// semantic type. Nulls pass; nullability is the store's concern.
func validateValue(contract *contracts.ResourceContract, name string, value any) *ValidationError {
	if value == nil {
		return nil
	}
	f := contract.Field(name)
	if f == nil {
		return invalid(contract.Resource, name, "Field does not exist: %s", name)
	}
	if len(f.Enum) > 0 {
		s, ok := value.(string)
		member := false
		if ok {
			for _, e := range f.Enum {
				if e == s {
					member = true
					break
				}
			}
		}
		if !member {
			return invalid(contract.Resource, name,
				"Invalid value for field %s: '%v'. Valid options are: %s",
				name, value, strings.Join(f.Enum, ", "))
		}
	}
	typeOK := true
	switch f.Type {
	case contracts.TypeUUID:
		if s, ok := value.(string); ok {
			_, err := uuid.Parse(s)
			typeOK = err == nil
		} else {
			typeOK = false
		}
	case contracts.TypeInteger:
		switch v := value.(type) {
		case float64:
			typeOK = v == float64(int64(v))
		case int, int64:
		case string:
			_, err := strconv.ParseInt(v, 10, 64)
			typeOK = err == nil
		default:
			typeOK = false
		}
	case contracts.TypeNumber:
		switch v := value.(type) {
		case float64, int, int64:
		case string:
			_, err := strconv.ParseFloat(v, 64)
			typeOK = err == nil
		default:
			typeOK = false
		}
	case contracts.TypeBoolean:
		switch v := value.(type) {
		case bool:
		case string:
			typeOK = v == "true" || v == "false"
		default:
			typeOK = false
		}
	case contracts.TypeDate, contracts.TypeTimestamp:
		if s, ok := value.(string); ok {
			typeOK = parseTimeish(s)
		} else {
			typeOK = false
		}
	}
	if !typeOK {
		return invalid(contract.Resource, name, "Invalid value for %s field %s: %v", f.Type, name, value)
	}
	return nil
}

func parseTimeish(s string) bool {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
