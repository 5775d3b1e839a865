package app

import (
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	now := time.Date(2024, 1, 10, 21, 5, 9, 0, time.FixedZone("WIB", 7*60*60))
	op := NewOperation("Serve", now)

	if op.ID != "20240110T140509Z" {
		t.Errorf("ID = %q, want UTC timestamp", op.ID)
	}
	if op.Name != "Serve" {
		t.Errorf("Name = %q", op.Name)
	}
	if op.Status != "success" {
		t.Errorf("Status = %q, want %q", op.Status, "success")
	}
}

func TestOperation_FailAndDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	op := NewOperation("Recover", start)
	op.Fail()

	if op.Status != "error" {
		t.Errorf("Status = %q, want %q", op.Status, "error")
	}
	if got := op.Duration(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Duration() = %v", got)
	}
}
