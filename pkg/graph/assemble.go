package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/schema"
)

// Input carries everything Assemble needs. The document is read, never
// mutated; identifiers come from the resolved consent context.
type Input struct {
	Document          document.Document
	Requirements      schema.Requirements
	ClientEntityKeyID uuid.UUID
	StaffEntityKeyID  uuid.UUID
	EntitySetIDs      edm.EntitySetIDs
	PropertyTypeIDs   edm.PropertyTypeIDs
	Timestamp         time.Time
}

// Graph is an assembled submission payload.
type Graph struct {
	EntityData      EntityData
	AssociationData AssociationData
}

// Signature slots: the client signature gets index 0 and the staff
// signature gets index 1, so witness signatures start at index 2 whether
// or not the form collects a staff signature.
const witnessSignatureOffset = 2

// Assemble builds the full submission graph from a finished document:
// entity records keyed by entity set, association edges in a fixed order,
// witness index remapping, and the form-content snapshot substitution.
func Assemble(in Input) (*Graph, error) {
	if err := checkRequiredSections(in); err != nil {
		return nil, err
	}

	doc, err := schema.SyncWitnessNames(in.Document)
	if err != nil {
		return nil, err
	}
	witnessCount, err := schema.CountWitnesses(doc)
	if err != nil {
		return nil, err
	}

	timestamp := in.Timestamp.UTC().Format(time.RFC3339)
	associations := buildAssociations(in, witnessCount, timestamp)

	// The form-content field is replaced with the entire document snapshot
	// (serialized by the key mapper below) so the submitted form can be
	// reconstructed from the form entity alone, without crawling the graph.
	snapshot := map[string]any(document.Clone(doc))
	doc = document.Set(doc, schema.FormContentSection, schema.FormContentKey, snapshot)

	entityData, err := ProcessEntityData(doc, in.EntitySetIDs, in.PropertyTypeIDs, buildMappers(in.Requirements, timestamp))
	if err != nil {
		return nil, err
	}
	associationData, err := ProcessAssociationEntityData(associations, in.EntitySetIDs, in.PropertyTypeIDs)
	if err != nil {
		return nil, err
	}

	return &Graph{EntityData: entityData, AssociationData: associationData}, nil
}

func checkRequiredSections(in Input) error {
	doc := in.Document
	for _, sectionKey := range []string{schema.LocationSection, schema.FormSection, schema.ClientSection} {
		if len(document.Section(doc, sectionKey)) == 0 {
			return fmt.Errorf("%w: section %q", ErrMissingRequiredField, sectionKey)
		}
	}
	if in.ClientEntityKeyID == uuid.Nil {
		return fmt.Errorf("%w: client entity key id", ErrMissingRequiredField)
	}
	if in.Requirements.Staff {
		if len(document.Section(doc, schema.StaffSection)) == 0 {
			return fmt.Errorf("%w: section %q", ErrMissingRequiredField, schema.StaffSection)
		}
		if in.StaffEntityKeyID == uuid.Nil {
			return fmt.Errorf("%w: staff entity key id", ErrMissingRequiredField)
		}
	}
	return nil
}

func buildAssociations(in Input, witnessCount int, timestamp string) []Association {
	var associations []Association
	stamped := func() map[edm.FQN][]any {
		return map[edm.FQN][]any{edm.OLDateTime: {timestamp}}
	}
	roleStamped := func(role edm.SigningRole) map[edm.FQN][]any {
		return map[edm.FQN][]any{
			edm.OLDateTime: {timestamp},
			edm.OLRole:     {string(role)},
		}
	}

	// form -> includes -> signature
	associations = append(associations, Association{
		EntitySet: edm.Includes, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
		DstIndex: 0, DstEntitySet: edm.ElectronicSignatures, Properties: stamped(),
	})
	if in.Requirements.Staff {
		associations = append(associations, Association{
			EntitySet: edm.Includes, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
			DstIndex: 1, DstEntitySet: edm.ElectronicSignatures, Properties: stamped(),
		})
	}
	if in.Requirements.Witness {
		for i := 0; i < witnessCount; i++ {
			associations = append(associations, Association{
				EntitySet: edm.Includes, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
				DstIndex: i + witnessSignatureOffset, DstEntitySet: edm.ElectronicSignatures, Properties: stamped(),
			})
		}
	}

	// signature -> located at -> location
	associations = append(associations, Association{
		EntitySet: edm.LocatedAt, SrcIndex: 0, SrcEntitySet: edm.ElectronicSignatures,
		DstIndex: 0, DstEntitySet: edm.Location, Properties: stamped(),
	})
	if in.Requirements.Staff {
		associations = append(associations, Association{
			EntitySet: edm.LocatedAt, SrcIndex: 1, SrcEntitySet: edm.ElectronicSignatures,
			DstIndex: 0, DstEntitySet: edm.Location, Properties: stamped(),
		})
	}
	if in.Requirements.Witness {
		for i := 0; i < witnessCount; i++ {
			associations = append(associations, Association{
				EntitySet: edm.LocatedAt, SrcIndex: i + witnessSignatureOffset, SrcEntitySet: edm.ElectronicSignatures,
				DstIndex: 0, DstEntitySet: edm.Location, Properties: stamped(),
			})
		}
	}

	// form -> signed by -> person
	clientKeyID := in.ClientEntityKeyID
	associations = append(associations, Association{
		EntitySet: edm.SignedBy, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
		DstEntityKeyID: &clientKeyID, DstEntitySet: edm.Clients, Properties: roleStamped(edm.RoleClient),
	})
	if in.Requirements.Staff {
		staffKeyID := in.StaffEntityKeyID
		associations = append(associations, Association{
			EntitySet: edm.SignedBy, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
			DstEntityKeyID: &staffKeyID, DstEntitySet: edm.Staff, Properties: roleStamped(edm.RoleStaff),
		})
	}
	if in.Requirements.Witness {
		for i := 0; i < witnessCount; i++ {
			associations = append(associations, Association{
				EntitySet: edm.SignedBy, SrcIndex: 0, SrcEntitySet: edm.ConsentForms,
				DstIndex: i, DstEntitySet: edm.Witnesses, Properties: roleStamped(edm.RoleWitness),
			})
		}
	}

	// signature -> signed by -> person
	associations = append(associations, Association{
		EntitySet: edm.SignedBy, SrcIndex: 0, SrcEntitySet: edm.ElectronicSignatures,
		DstEntityKeyID: &clientKeyID, DstEntitySet: edm.Clients, Properties: roleStamped(edm.RoleClient),
	})
	if in.Requirements.Staff {
		staffKeyID := in.StaffEntityKeyID
		associations = append(associations, Association{
			EntitySet: edm.SignedBy, SrcIndex: 1, SrcEntitySet: edm.ElectronicSignatures,
			DstEntityKeyID: &staffKeyID, DstEntitySet: edm.Staff, Properties: roleStamped(edm.RoleStaff),
		})
	}
	if in.Requirements.Witness {
		for i := 0; i < witnessCount; i++ {
			associations = append(associations, Association{
				EntitySet: edm.SignedBy, SrcIndex: i + witnessSignatureOffset, SrcEntitySet: edm.ElectronicSignatures,
				DstIndex: i, DstEntitySet: edm.Witnesses, Properties: roleStamped(edm.RoleWitness),
			})
		}
	}

	return associations
}

func buildMappers(req schema.Requirements, timestamp string) Mappers {
	mappers := Mappers{
		Key: map[string]KeyMapper{
			schema.FormContentKey: func(value any) (any, error) {
				serialized, err := json.Marshal(value)
				if err != nil {
					return nil, err
				}
				return string(serialized), nil
			},
		},
		Value: map[string]ValueMapper{
			schema.ClientSignatureDateKey: func(any) any { return timestamp },
			schema.ClientSignatureDataKey: signatureValueMapper,
		},
	}
	if req.Staff {
		mappers.Value[schema.StaffSignatureDateKey] = func(any) any { return timestamp }
		mappers.Value[schema.StaffSignatureDataKey] = signatureValueMapper
	}
	if req.Witness {
		mappers.Value[schema.WitnessSignatureDateKey] = func(any) any { return timestamp }
		mappers.Value[schema.WitnessSignatureDataKey] = signatureValueMapper
		mappers.Index = map[string]IndexMapper{
			schema.WitnessSignatureNameKey: func(i int) int { return i + witnessSignatureOffset },
			schema.WitnessSignatureDateKey: func(i int) int { return i + witnessSignatureOffset },
			schema.WitnessSignatureDataKey: func(i int) int { return i + witnessSignatureOffset },
		}
	}
	return mappers
}

// signatureValueMapper wraps captured signature images for submission.
// TODO: the content type is hardcoded until binary fields carry their own.
func signatureValueMapper(value any) any {
	if value == nil || value == "" {
		return nil
	}
	data, ok := value.(string)
	if !ok {
		data = fmt.Sprint(value)
	}
	return BinaryEnvelope{Data: data, ContentType: ContentTypePNG}
}
