package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/geo"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func schemaWithout(t *testing.T, sections ...string) *Schema {
	t.Helper()
	s := BaseSchema()
	props, ok := s.DataSchema[0]["properties"].(map[string]any)
	if !ok {
		t.Fatalf("base schema has no properties")
	}
	for _, section := range sections {
		delete(props, section)
	}
	return s
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("{not json")); !errors.Is(err, ErrSchemaShape) {
		t.Fatalf("got %v, want ErrSchemaShape", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	serialized, err := json.Marshal(BaseSchema())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s, err := Parse(serialized)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	req, err := DeriveRequirements(s)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if !req.Staff || !req.Witness {
		t.Fatalf("got %+v, want staff and witness required", req)
	}
}

func TestDeriveRequirements(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		staff   bool
		witness bool
	}{
		{"full", BaseSchema(), true, true},
		{"no staff", schemaWithout(t, StaffSection), false, true},
		{"no witness", schemaWithout(t, WitnessSection), true, false},
		{"client only", schemaWithout(t, StaffSection, WitnessSection), false, false},
	}
	for _, tt := range tests {
		req, err := DeriveRequirements(tt.schema)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if req.Staff != tt.staff || req.Witness != tt.witness {
			t.Fatalf("%s: got %+v, want staff=%v witness=%v", tt.name, req, tt.staff, tt.witness)
		}
	}
}

func TestDeriveRequirementsEmptySchema(t *testing.T) {
	if _, err := DeriveRequirements(&Schema{}); !errors.Is(err, ErrSchemaShape) {
		t.Fatalf("got %v, want ErrSchemaShape", err)
	}
}

func TestInitialize(t *testing.T) {
	doc, err := Initialize(document.Document{}, BaseSchema(), testNow)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	serialized, ok := document.Get(doc, FormSection, FormSchemaKey).(string)
	if !ok || serialized == "" {
		t.Fatalf("schema not serialized into form section")
	}
	if _, err := Parse([]byte(serialized)); err != nil {
		t.Fatalf("stored schema does not parse: %v", err)
	}

	if got := document.Get(doc, ClientSection, ClientSignatureDateKey); got != "2024-01-01" {
		t.Fatalf("client date: got %v, want 2024-01-01", got)
	}
	if got := document.Get(doc, StaffSection, StaffSignatureDateKey); got != "2024-01-01" {
		t.Fatalf("staff date: got %v, want 2024-01-01", got)
	}

	count, err := CountWitnesses(doc)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("got %d witnesses, want 0", count)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	first, err := Initialize(document.Document{}, BaseSchema(), testNow)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	second, err := Initialize(first, BaseSchema(), testNow)
	if err != nil {
		t.Fatalf("re-initialize failed: %v", err)
	}
	if !document.Equal(first, second) {
		t.Fatalf("re-initialization changed the document")
	}
}

func TestInitializePreservesExistingWitnesses(t *testing.T) {
	doc := document.Document{
		WitnessSection: []document.Fields{{WitnessSignatureNameKey: "Ann"}},
	}
	next, err := Initialize(doc, BaseSchema(), testNow)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	count, err := CountWitnesses(next)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d witnesses, want 1: existing list must not be clobbered", count)
	}
}

func TestInitializePrunesUnrequiredSections(t *testing.T) {
	doc := document.Document{
		StaffSection:   document.Fields{StaffNameKey: "Sam"},
		WitnessSection: []document.Fields{{WitnessSignatureNameKey: "Ann"}},
	}
	next, err := Initialize(doc, schemaWithout(t, StaffSection, WitnessSection), testNow)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, ok := next[StaffSection]; ok {
		t.Fatalf("staff section not pruned")
	}
	if _, ok := next[WitnessSection]; ok {
		t.Fatalf("witness section not pruned")
	}
}

func TestInitializeGeo(t *testing.T) {
	doc := InitializeGeo(document.Document{}, geo.Position{
		Coords: geo.Coordinates{Latitude: 33.92, Longitude: -118.39},
	})
	if got := document.Get(doc, LocationSection, LocationLatitudeKey); got != 33.92 {
		t.Fatalf("latitude: got %v", got)
	}
	if got := document.Get(doc, LocationSection, LocationLongitudeKey); got != -118.39 {
		t.Fatalf("longitude: got %v", got)
	}
}

func TestCountWitnessesNonList(t *testing.T) {
	doc := document.Document{WitnessSection: "nope"}
	if _, err := CountWitnesses(doc); !errors.Is(err, ErrWitnessCount) {
		t.Fatalf("got %v, want ErrWitnessCount", err)
	}
}

func TestSyncWitnessNames(t *testing.T) {
	doc := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann"},
			{WitnessSignatureNameKey: "Bea"},
		},
	}
	next, err := SyncWitnessNames(doc)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	items, _ := document.List(next, WitnessSection)
	if items[0][WitnessPersonNameKey] != "Ann" || items[1][WitnessPersonNameKey] != "Bea" {
		t.Fatalf("person names not synced: %v", items)
	}
}

func TestOnEditStampsOnlyNewLastRow(t *testing.T) {
	prev := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann", WitnessPersonNameKey: "Ann"},
			{WitnessSignatureNameKey: "Bea", WitnessPersonNameKey: "Bea"},
		},
	}
	next := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann", WitnessPersonNameKey: "Ann"},
			{WitnessSignatureNameKey: "Bea", WitnessPersonNameKey: "Bea"},
			{WitnessSignatureNameKey: "Cal"},
		},
	}
	result, changed, err := OnEdit(prev, next, testNow)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed")
	}
	items, _ := document.List(result, WitnessSection)
	if got := items[2][WitnessSignatureDateKey]; got != "2024-01-01T00:00:00Z" {
		t.Fatalf("new row date: got %v", got)
	}
	for i := 0; i < 2; i++ {
		if _, ok := items[i][WitnessSignatureDateKey]; ok {
			t.Fatalf("row %d got a date stamp it should not have", i)
		}
	}
	if items[2][WitnessPersonNameKey] != "Cal" {
		t.Fatalf("new row person name not synced: %v", items[2])
	}
}

func TestOnEditNoChange(t *testing.T) {
	doc := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann", WitnessPersonNameKey: "Ann"},
		},
	}
	result, changed, err := OnEdit(doc, document.Clone(doc), testNow)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if changed {
		t.Fatalf("expected no change")
	}
	if !document.Equal(result, doc) {
		t.Fatalf("no-op edit altered the document")
	}
}

func TestOnEditShrinkDoesNotStamp(t *testing.T) {
	prev := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann", WitnessPersonNameKey: "Ann"},
			{WitnessSignatureNameKey: "Bea", WitnessPersonNameKey: "Bea"},
		},
	}
	next := document.Document{
		WitnessSection: []document.Fields{
			{WitnessSignatureNameKey: "Ann", WitnessPersonNameKey: "Ann"},
		},
	}
	result, changed, err := OnEdit(prev, next, testNow)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed")
	}
	items, _ := document.List(result, WitnessSection)
	if _, ok := items[0][WitnessSignatureDateKey]; ok {
		t.Fatalf("shrinking the list must not stamp a date")
	}
}
