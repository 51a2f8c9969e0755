// Package schema derives the dynamic shape of a consent form from its
// server-provided schema and keeps the working document in sync with it:
// conditional staff/witness sections, date stamping, and the witness list
// invariants enforced on every edit.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/geo"
)

var (
	ErrSchemaShape  = errors.New(`invalid parameter: "schema" has an unexpected structure`)
	ErrWitnessCount = errors.New("unable to count additional witnesses")
)

// Schema is the server-delivered form description. Index 0 of each list is
// the active version. The maps are kept untyped so the schema can be
// re-serialized without loss.
type Schema struct {
	DataSchema []map[string]any `json:"dataSchema"`
	UISchema   []map[string]any `json:"uiSchema"`
}

// Parse decodes a serialized schema.
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaShape, err)
	}
	return &s, nil
}

// Requirements captures which optional sections this schema requires. It
// is computed once and threaded everywhere else instead of re-deriving
// section presence from the raw schema shape in every component.
type Requirements struct {
	Staff   bool
	Witness bool
}

func (s *Schema) properties() (map[string]any, error) {
	if len(s.DataSchema) == 0 {
		return nil, ErrSchemaShape
	}
	props, ok := s.DataSchema[0]["properties"].(map[string]any)
	if !ok {
		return nil, ErrSchemaShape
	}
	return props, nil
}

// DeriveRequirements inspects dataSchema[0].properties: presence of the
// staff or witness section key signals that the section is required.
func DeriveRequirements(s *Schema) (Requirements, error) {
	props, err := s.properties()
	if err != nil {
		return Requirements{}, err
	}
	_, staff := props[StaffSection]
	_, witness := props[WitnessSection]
	return Requirements{Staff: staff, Witness: witness}, nil
}

// Initialize seeds a working document from the schema: it stores the
// serialized schema into the form section, stamps today's date into the
// client signature date (and staff's, when required), seeds an empty
// witness list when required, and prunes sections the schema does not
// require. Idempotent for a given schema; only the schema and date fields
// it owns are ever overwritten.
func Initialize(doc document.Document, s *Schema, now time.Time) (document.Document, error) {
	req, err := DeriveRequirements(s)
	if err != nil {
		return nil, err
	}
	serialized, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaShape, err)
	}

	// Date granularity matters here: a full timestamp changes every call
	// and defeats the no-op equality check in the edit loop. All dates are
	// overwritten with the submission timestamp at assembly time anyway.
	nowAsDate := now.Format("2006-01-02")

	next := document.Set(doc, FormSection, FormSchemaKey, string(serialized))
	next = document.Set(next, ClientSection, ClientSignatureDateKey, nowAsDate)

	if req.Staff {
		next = document.Set(next, StaffSection, StaffSignatureDateKey, nowAsDate)
	} else {
		next = document.Remove(next, StaffSection)
	}

	if req.Witness {
		if _, ok := next[WitnessSection]; !ok {
			next = document.SetSection(next, WitnessSection, []document.Fields{})
		}
	} else {
		next = document.Remove(next, WitnessSection)
	}

	return next, nil
}

// InitializeGeo writes an acquired position into the location section.
func InitializeGeo(doc document.Document, position geo.Position) document.Document {
	next := document.Set(doc, LocationSection, LocationLatitudeKey, position.Coords.Latitude)
	next = document.Set(next, LocationSection, LocationLongitudeKey, position.Coords.Longitude)
	return next
}
