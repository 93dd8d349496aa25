// internal/contracts/types.go
package contracts

// FieldType is the semantic type of a contract field.
type FieldType string

const (
	TypeUUID      FieldType = "uuid"
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeNumber    FieldType = "number"
	TypeInteger   FieldType = "integer"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeTimestamp FieldType = "timestamp"
	TypeJSON      FieldType = "json"
)

// FilterOperator is a predicate operator a contract may allow per field.
type FilterOperator string

const (
	OpEq      FilterOperator = "="
	OpNeq     FilterOperator = "!="
	OpGt      FilterOperator = ">"
	OpGte     FilterOperator = ">="
	OpLt      FilterOperator = "<"
	OpLte     FilterOperator = "<="
	OpIn      FilterOperator = "IN"
	OpBetween FilterOperator = "BETWEEN"
	OpLike    FilterOperator = "LIKE"
	OpILike   FilterOperator = "ILIKE"
)

// Operation is a data operation a contract may allow.
type Operation string

const (
	OpRead   Operation = "READ"
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Field declares one column of a resource as visible to callers.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
	PII      bool
	Readable bool
	Writable bool
	Enum     []string // non-empty means the value domain is closed
}

// Limits bounds the shape of any single operation against a resource.
type Limits struct {
	MaxRows         int
	MaxPredicates   int
	MaxUpdateFields int
	MaxJoins        int
}

// JoinKey is one equality pair of a join condition.
type JoinKey struct {
	LeftField  string `json:"leftField"`
	RightField string `json:"rightField"`
}

// JoinDefinition declares one permitted join. Only inner joins exist.
type JoinDefinition struct {
	TargetResource string
	On             []JoinKey
}

// ResourceContract is the complete, immutable policy for one resource.
// Instances are built once at start-up and never mutated; per-role filtering
// works on copies (see ForRole).
type ResourceContract struct {
	Version        string
	Resource       string
	OpsAllowed     []Operation
	Fields         []Field
	FiltersAllowed map[string][]FilterOperator
	OrderAllowed   []string
	Limits         Limits
	JoinsAllowed   []JoinDefinition
}

// Field returns the declaration for name, or nil.
func (c *ResourceContract) Field(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

func (c *ResourceContract) OperationAllowed(op Operation) bool {
	for _, o := range c.OpsAllowed {
		if o == op {
			return true
		}
	}
	return false
}

// AllowedOperators returns the operator set for a field (empty when the
// field is not filterable).
func (c *ResourceContract) AllowedOperators(field string) []FilterOperator {
	return c.FiltersAllowed[field]
}

// JoinAllowed reports whether a join to target with exactly the given key
// pairs is declared on this contract.
func (c *ResourceContract) JoinAllowed(target string, on []JoinKey) bool {
	for _, jd := range c.JoinsAllowed {
		if jd.TargetResource != target || len(jd.On) != len(on) {
			continue
		}
		match := true
		for i := range jd.On {
			if jd.On[i] != on[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// PrimaryKeyField finds the field that identifies a row: a non-writable
// *_id column, falling back to common primary-key names. Empty when the
// contract exposes no identifier.
func (c *ResourceContract) PrimaryKeyField() string {
	for _, f := range c.Fields {
		if !f.Writable && len(f.Name) > 3 && f.Name[len(f.Name)-3:] == "_id" {
			return f.Name
		}
	}
	singular := c.Resource
	if n := len(singular); n > 0 && singular[n-1] == 's' {
		singular = singular[:n-1]
	}
	for _, f := range c.Fields {
		if f.Writable {
			continue
		}
		if f.Name == "id" || f.Name == singular+"_id" {
			return f.Name
		}
	}
	return ""
}

// clone deep-copies the contract so filtered views never alias registry
// state.
func (c *ResourceContract) clone() *ResourceContract {
	cp := &ResourceContract{
		Version:      c.Version,
		Resource:     c.Resource,
		OpsAllowed:   append([]Operation(nil), c.OpsAllowed...),
		Fields:       make([]Field, len(c.Fields)),
		OrderAllowed: append([]string(nil), c.OrderAllowed...),
		Limits:       c.Limits,
	}
	for i, f := range c.Fields {
		f.Enum = append([]string(nil), f.Enum...)
		cp.Fields[i] = f
	}
	cp.FiltersAllowed = make(map[string][]FilterOperator, len(c.FiltersAllowed))
	for k, v := range c.FiltersAllowed {
		cp.FiltersAllowed[k] = append([]FilterOperator(nil), v...)
	}
	for _, jd := range c.JoinsAllowed {
		jd.On = append([]JoinKey(nil), jd.On...)
		cp.JoinsAllowed = append(cp.JoinsAllowed, jd)
	}
	return cp
}
