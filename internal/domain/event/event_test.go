package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = false, want true", typ)
		}
	}

	for _, typ := range []Type{"", "instance.created", "sheet"} {
		if typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = true, want false", typ)
		}
	}
}

func TestType_String(t *testing.T) {
	if got := TypeAdvanceSettled.String(); got != "advance.settled" {
		t.Errorf("Type.String() = %v, want %v", got, "advance.settled")
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeSheetSubmitted, 42, 7, map[string]interface{}{"sheet_name": "Trip"})

	if evt.ID == "" || evt.CorrelationID == "" {
		t.Fatal("NewEvent() should generate ID and CorrelationID")
	}
	if evt.ID == evt.CorrelationID {
		t.Error("ID and CorrelationID should differ")
	}
	if evt.Type != TypeSheetSubmitted {
		t.Errorf("Type = %v, want %v", evt.Type, TypeSheetSubmitted)
	}
	if evt.SheetID != 42 || evt.ActorID != 7 {
		t.Errorf("SheetID, ActorID = %d, %d, want 42, 7", evt.SheetID, evt.ActorID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("Timestamp should not precede creation")
	}

	other := NewEvent(TypeSheetSubmitted, 42, 7, nil)
	if other.ID == evt.ID {
		t.Error("NewEvent() should generate unique IDs")
	}
	if other.Payload == nil {
		t.Error("NewEvent() should never leave Payload nil")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeSheetRefused, 1, 2, map[string]interface{}{"reason": "duplicate"})
	updated := original.WithPayload("refund", "300.00")

	if _, ok := original.Payload["refund"]; ok {
		t.Error("WithPayload() must not modify the original event")
	}
	if updated.GetPayloadString("refund") != "300.00" {
		t.Errorf("refund = %q, want %q", updated.GetPayloadString("refund"), "300.00")
	}
	if updated.GetPayloadString("reason") != "duplicate" {
		t.Error("WithPayload() should keep existing keys")
	}
	if updated.ID != original.ID {
		t.Error("WithPayload() should keep the event ID")
	}
}

func TestEvent_WithCorrelation(t *testing.T) {
	original := NewEvent(TypeSheetPosted, 1, 2, nil)
	linked := original.WithCorrelation("batch-1")

	if linked.CorrelationID != "batch-1" {
		t.Errorf("CorrelationID = %q, want %q", linked.CorrelationID, "batch-1")
	}
	if original.CorrelationID == "batch-1" {
		t.Error("WithCorrelation() must not modify the original event")
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeAdvanceSettled, 1, 2, map[string]interface{}{
		"as_int64":  int64(10),
		"as_int":    20,
		"as_float":  float64(30),
		"as_string": "40",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"as_int64", 10},
		{"as_int", 20},
		{"as_float", 30},
		{"as_string", 0},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := evt.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%q) = %d, want %d", tt.key, got, tt.want)
			}
		})
	}
}
