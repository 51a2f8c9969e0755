package document

import (
	"errors"
	"testing"
)

func TestCloneIsDeep(t *testing.T) {
	doc := Document{
		"page0section1": Fields{"a": "1"},
		"page1section4": []Fields{{"b": "2"}},
	}
	copied := Clone(doc)

	Section(copied, "page0section1")["a"] = "changed"
	items, err := List(copied, "page1section4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items[0]["b"] = "changed"

	if got := Get(doc, "page0section1", "a"); got != "1" {
		t.Fatalf("original mutated through clone: got %v", got)
	}
	original, _ := List(doc, "page1section4")
	if got := original[0]["b"]; got != "2" {
		t.Fatalf("original list mutated through clone: got %v", got)
	}
}

func TestSetDoesNotMutateInput(t *testing.T) {
	doc := Document{"page0section1": Fields{"a": "1"}}
	next := Set(doc, "page0section1", "b", "2")

	if got := Get(doc, "page0section1", "b"); got != nil {
		t.Fatalf("input mutated: got %v", got)
	}
	if got := Get(next, "page0section1", "b"); got != "2" {
		t.Fatalf("set value missing: got %v", got)
	}
}

func TestSetCreatesSection(t *testing.T) {
	next := Set(Document{}, "page1section2", "a", "1")
	if got := Get(next, "page1section2", "a"); got != "1" {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestEqualAcrossRepresentations(t *testing.T) {
	a := Document{
		"page1section4": []Fields{{"name": "Ann"}},
	}
	b := Document{
		"page1section4": []any{map[string]any{"name": "Ann"}},
	}
	if !Equal(a, b) {
		t.Fatalf("expected typed and decoded-JSON representations to be equal")
	}

	c := Document{
		"page1section4": []any{map[string]any{"name": "Bea"}},
	}
	if Equal(a, c) {
		t.Fatalf("expected documents with different values to differ")
	}
}

func TestListOnNonList(t *testing.T) {
	doc := Document{"page1section4": "nope"}
	if _, err := List(doc, "page1section4"); !errors.Is(err, ErrNotAList) {
		t.Fatalf("got %v, want ErrNotAList", err)
	}
}

func TestListAbsentSection(t *testing.T) {
	items, err := List(Document{}, "page1section4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}

func TestSetListFieldOutOfRange(t *testing.T) {
	doc := Document{"page1section4": []Fields{{"a": "1"}}}
	if _, err := SetListField(doc, "page1section4", 1, "a", "2"); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestSetListField(t *testing.T) {
	doc := Document{"page1section4": []Fields{{"a": "1"}}}
	next, err := SetListField(doc, "page1section4", 0, "a", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := List(next, "page1section4")
	if items[0]["a"] != "2" {
		t.Fatalf("got %v, want 2", items[0]["a"])
	}
	original, _ := List(doc, "page1section4")
	if original[0]["a"] != "1" {
		t.Fatalf("input mutated: got %v", original[0]["a"])
	}
}

func TestRemove(t *testing.T) {
	doc := Document{"page1section3": Fields{"a": "1"}}
	next := Remove(doc, "page1section3")
	if _, ok := next["page1section3"]; ok {
		t.Fatalf("section not removed")
	}
	if _, ok := doc["page1section3"]; !ok {
		t.Fatalf("input mutated")
	}
}
