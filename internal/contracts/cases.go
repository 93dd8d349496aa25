// internal/contracts/cases.go
package contracts

func casesContract() *ResourceContract {
	return &ResourceContract{
		Version:  "1.0.0",
		Resource: "cases",
		OpsAllowed: []Operation{OpRead, OpInsert, OpUpdate},
		Fields: []Field{
			{Name: "case_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: false},
			{Name: "client_name", Type: TypeString, Nullable: false, PII: true, Readable: true, Writable: true},
			{Name: "client_email", Type: TypeString, Nullable: false, PII: true, Readable: true, Writable: true},
			{Name: "client_phone", Type: TypeString, Nullable: true, PII: true, Readable: true, Writable: true},
			{Name: "status", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"OPEN", "CLOSED"}},
			{Name: "created_at", Type: TypeTimestamp, Nullable: false, Readable: true, Writable: false},
		},
		FiltersAllowed: map[string][]FilterOperator{
			"case_id":      {OpEq},
			"client_name":  {OpEq, OpLike, OpILike},
			"client_email": {OpEq, OpLike, OpILike},
			"client_phone": {OpEq, OpLike},
			"status":       {OpEq, OpIn},
			"created_at":   {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
		},
		OrderAllowed: []string{"created_at", "client_name", "status"},
		Limits:       Limits{MaxRows: 100, MaxPredicates: 10, MaxUpdateFields: 5, MaxJoins: 1},
		JoinsAllowed: []JoinDefinition{
			{TargetResource: "client_communications", On: []JoinKey{{LeftField: "case_id", RightField: "case_id"}}},
		},
	}
}
