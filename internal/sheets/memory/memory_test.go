package memory

import (
	"context"
	"testing"

	"saldo/internal/core"
)

func TestStore_ExportClosure(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportClosure(ctx, core.MonthClosure{ID: 4, UserID: "u1"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	ref, err = s.ExportClosure(ctx, core.MonthClosure{ID: 9, UserID: "u1"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	// redelivery returns the original row
	ref, err = s.ExportClosure(ctx, core.MonthClosure{ID: 4, UserID: "u1"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected re-export: ref=%q err=%v", ref, err)
	}
	if got := s.Closures(); len(got) != 2 || got[0].ID != 4 || got[1].ID != 9 {
		t.Fatalf("closures = %+v", got)
	}
}

func TestStore_RejectsMissingID(t *testing.T) {
	if _, err := New().ExportClosure(context.Background(), core.MonthClosure{UserID: "u1"}); err == nil {
		t.Fatal("expected error")
	}
}
