package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewConnectionEdgeIsCanonical(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	edge := NewConnectionEdge(a, b, uuid.Nil)
	if edge.UserLow != b || edge.UserHigh != a {
		t.Fatalf("expected (%s,%s) got (%s,%s)", b, a, edge.UserLow, edge.UserHigh)
	}

	swapped := NewConnectionEdge(b, a, uuid.Nil)
	if swapped.UserLow != edge.UserLow || swapped.UserHigh != edge.UserHigh {
		t.Fatal("edge must not depend on argument order")
	}
}
