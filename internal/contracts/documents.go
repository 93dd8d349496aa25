// internal/contracts/documents.go
package contracts

func documentsContract() *ResourceContract {
	return &ResourceContract{
		Version:  "1.0.0",
		Resource: "documents",
		OpsAllowed: []Operation{OpRead, OpInsert, OpUpdate},
		Fields: []Field{
			{Name: "document_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: false},
			{Name: "case_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: true},
			{Name: "original_file_name", Type: TypeString, Nullable: false, Readable: true, Writable: true},
			{Name: "original_file_size", Type: TypeInteger, Nullable: false, Readable: true, Writable: true},
			{Name: "original_file_type", Type: TypeString, Nullable: false, Readable: true, Writable: true},
			{Name: "original_location", Type: TypeString, Nullable: false, Readable: true, Writable: true},
			{Name: "status", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"PENDING", "PROCESSING", "COMPLETED", "FAILED"}},
			{Name: "created_at", Type: TypeTimestamp, Nullable: false, Readable: true, Writable: false},
			{Name: "processed_file_name", Type: TypeString, Nullable: true, Readable: true, Writable: true},
			{Name: "processed_file_size", Type: TypeInteger, Nullable: true, Readable: true, Writable: true},
			{Name: "processed_location", Type: TypeString, Nullable: true, Readable: true, Writable: true},
			{Name: "batch_id", Type: TypeString, Nullable: true, Readable: true, Writable: true},
		},
		FiltersAllowed: map[string][]FilterOperator{
			"document_id":        {OpEq},
			"case_id":            {OpEq, OpIn},
			"original_file_name": {OpEq, OpLike, OpILike},
			"original_file_type": {OpEq, OpIn},
			"status":             {OpEq, OpIn},
			"created_at":         {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
			"original_file_size": {OpGt, OpLte},
			"batch_id":           {OpEq},
		},
		OrderAllowed: []string{"created_at", "original_file_name", "status", "original_file_size"},
		Limits:       Limits{MaxRows: 100, MaxPredicates: 10, MaxUpdateFields: 8, MaxJoins: 1},
		JoinsAllowed: []JoinDefinition{
			{TargetResource: "document_analysis", On: []JoinKey{{LeftField: "document_id", RightField: "document_id"}}},
		},
	}
}

func documentAnalysisContract() *ResourceContract {
	return &ResourceContract{
		Version:  "1.0.0",
		Resource: "document_analysis",
		OpsAllowed: []Operation{OpRead, OpInsert, OpUpdate},
		Fields: []Field{
			{Name: "analysis_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: false},
			{Name: "document_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: true},
			{Name: "case_id", Type: TypeUUID, Nullable: false, Readable: true, Writable: true},
			{Name: "analysis_content", Type: TypeText, Nullable: false, PII: true, Readable: true, Writable: true},
			{Name: "analysis_status", Type: TypeString, Nullable: false, Readable: true, Writable: true, Enum: []string{"PENDING", "PROCESSING", "COMPLETED", "FAILED"}},
			{Name: "model_used", Type: TypeString, Nullable: false, Readable: true, Writable: true},
			{Name: "tokens_used", Type: TypeInteger, Nullable: true, Readable: true, Writable: true},
			{Name: "analyzed_at", Type: TypeTimestamp, Nullable: true, Readable: true, Writable: true},
			{Name: "created_at", Type: TypeTimestamp, Nullable: false, Readable: true, Writable: false},
			{Name: "analysis_reasoning", Type: TypeText, Nullable: true, Readable: true, Writable: true},
			{Name: "context_summary_created", Type: TypeBoolean, Nullable: true, Readable: true, Writable: true},
		},
		FiltersAllowed: map[string][]FilterOperator{
			"analysis_id":             {OpEq},
			"document_id":             {OpEq, OpIn},
			"case_id":                 {OpEq, OpIn},
			"analysis_status":         {OpEq, OpIn},
			"model_used":              {OpEq},
			"analyzed_at":             {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
			"created_at":              {OpEq, OpGt, OpGte, OpLt, OpLte, OpBetween},
			"context_summary_created": {OpEq},
		},
		OrderAllowed: []string{"analyzed_at", "created_at", "analysis_status"},
		Limits:       Limits{MaxRows: 50, MaxPredicates: 8, MaxUpdateFields: 6, MaxJoins: 1},
	}
}
