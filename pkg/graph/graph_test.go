package graph

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/schema"
)

var testTimestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testEntitySetIDs() edm.EntitySetIDs {
	out := edm.EntitySetIDs{}
	for _, es := range []edm.EntitySet{
		edm.Clients, edm.ConsentForms, edm.ConsentFormSchemas, edm.DigitalSignatures,
		edm.ElectronicSignatures, edm.Location, edm.PublicKeys, edm.Staff, edm.Witnesses,
		edm.DecryptedBy, edm.Includes, edm.LocatedAt, edm.SignedBy, edm.Verifies,
	} {
		out[es] = uuid.New()
	}
	return out
}

func testPropertyTypeIDs() edm.PropertyTypeIDs {
	out := edm.PropertyTypeIDs{}
	for _, fqn := range []edm.FQN{
		edm.GenFullName, edm.LocationLatitude, edm.LocationLongitude,
		edm.OLAlgorithmName, edm.OLCryptoKey, edm.OLDateTime, edm.OLDescription,
		edm.OLEllipticCurveName, edm.OLHashFunctionName, edm.OLName, edm.OLRole,
		edm.OLSchema, edm.OLSignatureData, edm.OLText, edm.OLType,
	} {
		out[fqn] = uuid.New()
	}
	return out
}

func minimalDocument() document.Document {
	return document.Document{
		schema.LocationSection: document.Fields{
			schema.LocationLatitudeKey:  33.92,
			schema.LocationLongitudeKey: -118.39,
		},
		schema.FormSection: document.Fields{
			schema.FormNameKey:   "Consent for Services",
			schema.FormTypeKey:   "CONSENT",
			schema.FormSchemaKey: `{"dataSchema":[],"uiSchema":[]}`,
		},
		schema.ClientSection: document.Fields{
			schema.ClientNameKey:          "Casey Client",
			schema.ClientSignatureDateKey: "2024-01-01",
			schema.ClientSignatureDataKey: "base64signature",
		},
	}
}

func fullDocument() document.Document {
	doc := minimalDocument()
	doc[schema.StaffSection] = document.Fields{
		schema.StaffNameKey:          "Sam Staff",
		schema.StaffSignatureDateKey: "2024-01-01",
		schema.StaffSignatureDataKey: "staffsignature",
	}
	doc[schema.WitnessSection] = []document.Fields{
		{
			schema.WitnessSignatureNameKey: "Ann Witness",
			schema.WitnessSignatureDataKey: "annsignature",
		},
		{
			schema.WitnessSignatureNameKey: "Bea Witness",
			schema.WitnessSignatureDataKey: "beasignature",
		},
	}
	return doc
}

func TestAssembleClientOnly(t *testing.T) {
	esids := testEntitySetIDs()
	ptids := testPropertyTypeIDs()
	clientEKID := uuid.New()

	g, err := Assemble(Input{
		Document:          minimalDocument(),
		Requirements:      schema.Requirements{},
		ClientEntityKeyID: clientEKID,
		EntitySetIDs:      esids,
		PropertyTypeIDs:   ptids,
		Timestamp:         testTimestamp,
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	signatures := g.EntityData[esids[edm.ElectronicSignatures]]
	if len(signatures) != 1 {
		t.Fatalf("got %d signature records, want 1", len(signatures))
	}
	date := signatures[0][ptids[edm.OLDateTime]]
	if len(date) != 1 || date[0] != "2024-01-01T00:00:00Z" {
		t.Fatalf("signature date: got %v, want submission timestamp", date)
	}
	sig := signatures[0][ptids[edm.OLSignatureData]]
	envelope, ok := sig[0].(BinaryEnvelope)
	if !ok {
		t.Fatalf("signature data not wrapped: %T", sig[0])
	}
	if envelope.ContentType != ContentTypePNG || envelope.Data != "base64signature" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	edges := 0
	for _, records := range g.AssociationData {
		edges += len(records)
	}
	if edges != 4 {
		t.Fatalf("got %d edges, want 4", edges)
	}
	signedBy := g.AssociationData[esids[edm.SignedBy]]
	if len(signedBy) != 2 {
		t.Fatalf("got %d signed-by edges, want 2", len(signedBy))
	}
	for i, edge := range signedBy {
		if edge.DstEntityKeyID == nil || *edge.DstEntityKeyID != clientEKID {
			t.Fatalf("signed-by edge %d does not target the client entity key id", i)
		}
		role := edge.Data[ptids[edm.OLRole]]
		if len(role) != 1 || role[0] != string(edm.RoleClient) {
			t.Fatalf("signed-by edge %d role: got %v", i, role)
		}
	}
}

func TestAssembleFormContentSnapshot(t *testing.T) {
	esids := testEntitySetIDs()
	ptids := testPropertyTypeIDs()

	g, err := Assemble(Input{
		Document:          minimalDocument(),
		Requirements:      schema.Requirements{},
		ClientEntityKeyID: uuid.New(),
		EntitySetIDs:      esids,
		PropertyTypeIDs:   ptids,
		Timestamp:         testTimestamp,
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	forms := g.EntityData[esids[edm.ConsentForms]]
	if len(forms) != 1 {
		t.Fatalf("got %d form records, want 1", len(forms))
	}
	content := forms[0][ptids[edm.OLText]]
	if len(content) != 1 {
		t.Fatalf("form content values: got %v", content)
	}
	serialized, ok := content[0].(string)
	if !ok {
		t.Fatalf("form content is not a string: %T", content[0])
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(serialized), &snapshot); err != nil {
		t.Fatalf("form content does not parse: %v", err)
	}
	for _, section := range []string{schema.LocationSection, schema.FormSection, schema.ClientSection} {
		if _, ok := snapshot[section]; !ok {
			t.Fatalf("snapshot missing section %q", section)
		}
	}
	if _, ok := snapshot[schema.FormContentSection]; ok {
		t.Fatalf("snapshot must not contain itself")
	}
}

func TestAssembleWitnessIndices(t *testing.T) {
	esids := testEntitySetIDs()
	ptids := testPropertyTypeIDs()
	clientEKID := uuid.New()
	staffEKID := uuid.New()

	g, err := Assemble(Input{
		Document:          fullDocument(),
		Requirements:      schema.Requirements{Staff: true, Witness: true},
		ClientEntityKeyID: clientEKID,
		StaffEntityKeyID:  staffEKID,
		EntitySetIDs:      esids,
		PropertyTypeIDs:   ptids,
		Timestamp:         testTimestamp,
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	signatures := g.EntityData[esids[edm.ElectronicSignatures]]
	if len(signatures) != 4 {
		t.Fatalf("got %d signature records, want 4 (client, staff, 2 witnesses)", len(signatures))
	}
	for i, record := range signatures {
		if record == nil {
			t.Fatalf("signature record %d is a hole", i)
		}
	}
	if name := signatures[2][ptids[edm.OLName]]; len(name) != 1 || name[0] != "Ann Witness" {
		t.Fatalf("witness signature at index 2: got %v", name)
	}
	if name := signatures[3][ptids[edm.OLName]]; len(name) != 1 || name[0] != "Bea Witness" {
		t.Fatalf("witness signature at index 3: got %v", name)
	}

	witnesses := g.EntityData[esids[edm.Witnesses]]
	if len(witnesses) != 2 {
		t.Fatalf("got %d witness person records, want 2", len(witnesses))
	}
	if name := witnesses[0][ptids[edm.GenFullName]]; len(name) != 1 || name[0] != "Ann Witness" {
		t.Fatalf("witness person name not synced: got %v", name)
	}

	includes := g.AssociationData[esids[edm.Includes]]
	if len(includes) != 4 {
		t.Fatalf("got %d includes edges, want 4", len(includes))
	}
	locatedAt := g.AssociationData[esids[edm.LocatedAt]]
	if len(locatedAt) != 4 {
		t.Fatalf("got %d located-at edges, want 4", len(locatedAt))
	}
	signedBy := g.AssociationData[esids[edm.SignedBy]]
	if len(signedBy) != 8 {
		t.Fatalf("got %d signed-by edges, want 8", len(signedBy))
	}

	// The witness signature edges pair shifted signature indices with
	// unshifted person indices.
	var witnessEdges []AssociationRecord
	for _, edge := range signedBy {
		if edge.SrcEntitySetID == esids[edm.ElectronicSignatures] && edge.DstEntitySetID == esids[edm.Witnesses] {
			witnessEdges = append(witnessEdges, edge)
		}
	}
	if len(witnessEdges) != 2 {
		t.Fatalf("got %d witness signature edges, want 2", len(witnessEdges))
	}
	for i, edge := range witnessEdges {
		if edge.SrcEntityIndex == nil || *edge.SrcEntityIndex != i+witnessSignatureOffset {
			t.Fatalf("witness edge %d src index: got %v, want %d", i, edge.SrcEntityIndex, i+witnessSignatureOffset)
		}
		if edge.DstEntityIndex == nil || *edge.DstEntityIndex != i {
			t.Fatalf("witness edge %d dst index: got %v, want %d", i, edge.DstEntityIndex, i)
		}
	}
}

func TestAssembleMissingClientSection(t *testing.T) {
	doc := minimalDocument()
	delete(doc, schema.ClientSection)
	_, err := Assemble(Input{
		Document:          doc,
		ClientEntityKeyID: uuid.New(),
		EntitySetIDs:      testEntitySetIDs(),
		PropertyTypeIDs:   testPropertyTypeIDs(),
		Timestamp:         testTimestamp,
	})
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("got %v, want ErrMissingRequiredField", err)
	}
}

func TestAssembleStaffRequiredButMissing(t *testing.T) {
	_, err := Assemble(Input{
		Document:          minimalDocument(),
		Requirements:      schema.Requirements{Staff: true},
		ClientEntityKeyID: uuid.New(),
		EntitySetIDs:      testEntitySetIDs(),
		PropertyTypeIDs:   testPropertyTypeIDs(),
		Timestamp:         testTimestamp,
	})
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("got %v, want ErrMissingRequiredField", err)
	}
}

func TestAssembleDoesNotMutateDocument(t *testing.T) {
	doc := fullDocument()
	snapshot := document.Clone(doc)
	_, err := Assemble(Input{
		Document:          doc,
		Requirements:      schema.Requirements{Staff: true, Witness: true},
		ClientEntityKeyID: uuid.New(),
		StaffEntityKeyID:  uuid.New(),
		EntitySetIDs:      testEntitySetIDs(),
		PropertyTypeIDs:   testPropertyTypeIDs(),
		Timestamp:         testTimestamp,
	})
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if !document.Equal(doc, snapshot) {
		t.Fatalf("assemble mutated its input document")
	}
}

func TestProcessEntityDataSkipsEmptyValues(t *testing.T) {
	esids := testEntitySetIDs()
	ptids := testPropertyTypeIDs()
	doc := document.Document{
		schema.FormSection: document.Fields{
			schema.FormNameKey:        "Form",
			schema.FormDescriptionKey: "",
		},
	}
	out, err := ProcessEntityData(doc, esids, ptids, Mappers{})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	record := out[esids[edm.ConsentForms]][0]
	if _, ok := record[ptids[edm.OLDescription]]; ok {
		t.Fatalf("empty value was not skipped")
	}
	if len(record[ptids[edm.OLName]]) != 1 {
		t.Fatalf("non-empty value missing")
	}
}

func TestProcessEntityDataRejectsRepeatableKeyInFlatSection(t *testing.T) {
	doc := document.Document{
		schema.FormSection: document.Fields{
			schema.WitnessSignatureNameKey: "Ann",
		},
	}
	if _, err := ProcessEntityData(doc, testEntitySetIDs(), testPropertyTypeIDs(), Mappers{}); err == nil {
		t.Fatalf("expected an error for a repeatable key outside a repeatable section")
	}
}

func TestValidate(t *testing.T) {
	esids := testEntitySetIDs()
	srcIndex, dstIndex := 0, 2
	g := &Graph{
		EntityData: EntityData{
			esids[edm.ConsentForms]:         {EntityRecord{}},
			esids[edm.ElectronicSignatures]: {EntityRecord{}, nil, EntityRecord{}},
		},
		AssociationData: AssociationData{
			esids[edm.Includes]: {{
				SrcEntitySetID: esids[edm.ConsentForms],
				SrcEntityIndex: &srcIndex,
				DstEntitySetID: esids[edm.ElectronicSignatures],
				DstEntityIndex: &dstIndex,
			}},
		},
	}
	if err := Validate(g); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}

	holeIndex := 1
	g.AssociationData[esids[edm.Includes]] = append(g.AssociationData[esids[edm.Includes]], AssociationRecord{
		SrcEntitySetID: esids[edm.ConsentForms],
		SrcEntityIndex: &srcIndex,
		DstEntitySetID: esids[edm.ElectronicSignatures],
		DstEntityIndex: &holeIndex,
	})
	if err := Validate(g); !errors.Is(err, ErrDanglingEdge) {
		t.Fatalf("got %v, want ErrDanglingEdge", err)
	}
}
