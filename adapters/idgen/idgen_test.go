package idgen_test

import (
	"regexp"
	"testing"

	"github.com/scality/utapi/adapters/idgen"
)

func TestUUID_New(t *testing.T) {
	g := idgen.UUID{}
	id := g.New()

	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("ID %s doesn't match UUID v4 format", id)
	}
}

func TestUUID_New_Unique(t *testing.T) {
	g := idgen.UUID{}
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := g.New()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSequential_New(t *testing.T) {
	g := idgen.NewSequential("req_")

	if id := g.New(); id != "req_000001" {
		t.Errorf("first ID = %s, want req_000001", id)
	}
	if id := g.New(); id != "req_000002" {
		t.Errorf("second ID = %s, want req_000002", id)
	}
}

func TestSequential_New_SortsLexicographicallyInOrder(t *testing.T) {
	g := idgen.NewSequential("req_")

	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, g.New())
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("ID %d (%s) does not sort before ID %d (%s)", i-1, ids[i-1], i, ids[i])
		}
	}
}

func TestSequential_Reset(t *testing.T) {
	g := idgen.NewSequential("id_")
	g.New()
	g.New()
	g.Reset()

	if id := g.New(); id != "id_000001" {
		t.Errorf("after reset ID = %s, want id_000001", id)
	}
}
