package dsl

import (
	"errors"
	"testing"

	"agentgate/internal/contracts"
)

func TestDecodeStepRead(t *testing.T) {
	raw := []byte(`{"op":"READ","resource":"cases","select":["case_id","status"],"where":[{"field":"status","op":"=","value":"OPEN"}],"order_by":[{"field":"created_at","dir":"desc"}],"offset":10,"limit":25}`)
	step, err := DecodeStep(raw)
	if err != nil {
		t.Fatal(err)
	}
	read, ok := step.(*ReadOperation)
	if !ok {
		t.Fatalf("decoded %T, want *ReadOperation", step)
	}
	if read.Resource != "cases" || read.Limit != 25 || read.Offset != 10 {
		t.Errorf("unexpected shape: %+v", read)
	}
	if len(read.Where) != 1 || read.Where[0].Op != "=" || read.Where[0].Value != "OPEN" {
		t.Errorf("where decoded wrong: %+v", read.Where)
	}
}

func TestDecodeStepReadDefaultsLimit(t *testing.T) {
	step, err := DecodeStep([]byte(`{"op":"READ","resource":"cases","select":["case_id"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := step.(*ReadOperation).Limit; got != 100 {
		t.Errorf("default limit = %d, want 100", got)
	}
}

func TestDecodeStepReadKeepsExplicitZeroLimit(t *testing.T) {
	step, err := DecodeStep([]byte(`{"op":"READ","resource":"cases","select":["case_id"],"limit":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := step.(*ReadOperation).Limit; got != 0 {
		t.Errorf("explicit zero limit = %d, want 0", got)
	}
}

func TestDecodeStepUpdateDefaultsLimit(t *testing.T) {
	raw := []byte(`{"op":"UPDATE","resource":"cases","where":[{"field":"case_id","op":"=","value":"x"}],"update":{"status":"CLOSED"}}`)
	step, err := DecodeStep(raw)
	if err != nil {
		t.Fatal(err)
	}
	up := step.(*UpdateOperation)
	if up.Limit != 1 {
		t.Errorf("update limit = %d, want 1", up.Limit)
	}
	if up.Update["status"] != "CLOSED" {
		t.Errorf("update map decoded wrong: %+v", up.Update)
	}
}

func TestDecodeStepDeleteIsUnsupported(t *testing.T) {
	_, err := DecodeStep([]byte(`{"op":"DELETE","resource":"cases","where":[{"field":"case_id","op":"=","value":"x"}]}`))
	var unsup *UnsupportedOpError
	if !errors.As(err, &unsup) {
		t.Fatalf("err = %v, want UnsupportedOpError", err)
	}
	if unsup.OpTag != "DELETE" || unsup.Resource != "cases" {
		t.Errorf("unexpected error detail: %+v", unsup)
	}
}

func TestDecodePlan(t *testing.T) {
	raw := []byte(`{"steps":[{"op":"INSERT","resource":"cases","values":{"client_name":"A"}}]}`)
	plan, err := DecodePlan(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !plan.IsWrite() {
		t.Error("insert plan should be a write")
	}
	if plan.Primary().Op() != contracts.OpInsert {
		t.Errorf("primary op = %s", plan.Primary().Op())
	}
}

func TestDecodePlanRejectsEmpty(t *testing.T) {
	if _, err := DecodePlan([]byte(`{"steps":[]}`)); err == nil {
		t.Error("empty plan should not decode")
	}
}
