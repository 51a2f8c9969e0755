// Package graph turns a finished form document into the entity and
// association payload the graph data API accepts. Assembly is a pure
// function of its inputs so a failed submission can always rebuild from
// the current document.
package graph

import (
	"errors"

	"github.com/google/uuid"

	"github.com/openlattice/lattice-consent/pkg/edm"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnknownEntitySet     = errors.New("no entity set id for entity set")
	ErrUnknownPropertyType  = errors.New("no property type id for property type")
	ErrDanglingEdge         = errors.New("association references a missing entity")
)

// EntityRecord maps property type ids to value lists. Every property is
// multi-valued by contract, even when it carries a single value.
type EntityRecord map[uuid.UUID][]any

// EntityData maps entity set ids to record sequences. A sequence may
// contain nil holes: witness signatures always start at index 2 so their
// indices stay stable whether or not a staff record occupies index 1.
type EntityData map[uuid.UUID][]EntityRecord

// AssociationRecord is one edge of the submission graph. Exactly one of
// the index/key-id pairs is set per endpoint: indices address entities
// created by this submission, key ids address pre-existing entities.
type AssociationRecord struct {
	SrcEntitySetID uuid.UUID    `json:"srcEntitySetId"`
	SrcEntityIndex *int         `json:"srcEntityIndex,omitempty"`
	SrcEntityKeyID *uuid.UUID   `json:"srcEntityKeyId,omitempty"`
	DstEntitySetID uuid.UUID    `json:"dstEntitySetId"`
	DstEntityIndex *int         `json:"dstEntityIndex,omitempty"`
	DstEntityKeyID *uuid.UUID   `json:"dstEntityKeyId,omitempty"`
	Data           EntityRecord `json:"data"`
}

// AssociationData maps association entity set ids to edge lists.
type AssociationData map[uuid.UUID][]AssociationRecord

// Association is the pre-resolution form of an edge, expressed in logical
// entity set names. DstEntityKeyID, when set, wins over DstIndex.
type Association struct {
	EntitySet      edm.EntitySet
	SrcIndex       int
	SrcEntitySet   edm.EntitySet
	DstIndex       int
	DstEntityKeyID *uuid.UUID
	DstEntitySet   edm.EntitySet
	Properties     map[edm.FQN][]any
}

// BinaryEnvelope wraps binary property values for submission. Field order
// matches the alphabetical key order encoding/json uses for maps, so an
// envelope serializes to the same bytes before and after a JSON round
// trip; the signed canonical payload depends on that.
type BinaryEnvelope struct {
	ContentType string `json:"content-type"`
	Data        string `json:"data"`
}

const (
	ContentTypePNG         = "image/png"
	ContentTypeOctetStream = "application/octet-stream"
)

// Clone returns a copy of the entity data that shares no mutable state
// with the original. Records themselves are copied shallowly per property.
func (ed EntityData) Clone() EntityData {
	out := make(EntityData, len(ed))
	for esid, records := range ed {
		copied := make([]EntityRecord, len(records))
		for i, record := range records {
			if record == nil {
				continue
			}
			rec := make(EntityRecord, len(record))
			for ptid, values := range record {
				rec[ptid] = append([]any(nil), values...)
			}
			copied[i] = rec
		}
		out[esid] = copied
	}
	return out
}

// Clone returns a copy of the association data.
func (ad AssociationData) Clone() AssociationData {
	out := make(AssociationData, len(ad))
	for esid, records := range ad {
		out[esid] = append([]AssociationRecord(nil), records...)
	}
	return out
}
