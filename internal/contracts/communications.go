// internal/contracts/communications.go
package contracts

func clientCommunicationsContract() *ResourceContract {
	return &ResourceContract{
		Version:  "1.0.0",
		Resource: "client_communications",
		OpsAllowed: []Operation{OpRead, OpInsert, OpUpdate},
		Fields: []Field{
			{Name: "communication_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: false},
			{Name: "case_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: true},
			{Name: "channel", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"email", "sms"}},
			{Name: "direction", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"incoming", "outgoing"}},
			{Name: "status", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"sent", "delivered", "failed", "opened"}},
			{Name: "sender", Type: TypeString, Nullable: false, PII: true, Readable: true, Writable: true},
			{Name: "recipient", Type: TypeString, Nullable: false, PII: true, Readable: true, Writable: true},
			{Name: "subject", Type: TypeString, Nullable: true, Readable: true, Writable: true},
			{Name: "message_content", Type: TypeText, Nullable: true, PII: true, Readable: true, Writable: true},
			{Name: "created_at", Type: TypeTimestamp, Nullable: false, Readable: true, Writable: false},
			{Name: "sent_at", Type: TypeTimestamp, Nullable: true, Readable: true, Writable: true},
			{Name: "opened_at", Type: TypeTimestamp, Nullable: true, Readable: true, Writable: true},
			{Name: "provider_ref", Type: TypeString, Nullable: true, Readable: true, Writable: true},
		},
		FiltersAllowed: map[string][]FilterOperator{
			"communication_id": {OpEq},
			"case_id":          {OpEq, OpIn},
			"channel":          {OpEq, OpIn},
			"direction":        {OpEq, OpIn},
			"status":           {OpEq, OpIn},
			"sender":           {OpEq, OpLike, OpILike},
			"recipient":        {OpEq, OpLike, OpILike},
			"subject":          {OpLike, OpILike},
			"created_at":       {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
			"sent_at":          {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
		},
		OrderAllowed: []string{"created_at", "sent_at", "channel", "direction", "status"},
		Limits:       Limits{MaxRows: 100, MaxPredicates: 10, MaxUpdateFields: 8, MaxJoins: 1},
		JoinsAllowed: []JoinDefinition{
			{TargetResource: "cases", On: []JoinKey{{LeftField: "case_id", RightField: "case_id"}}},
		},
	}
}
