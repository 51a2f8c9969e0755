package graph

import (
	"fmt"
	"sort"

	"github.com/openlattice/lattice-consent/pkg/address"
	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/edm"
)

// KeyMapper rewrites the value addressed by a specific field key before
// submission, e.g. reserializing the form snapshot as a JSON string.
type KeyMapper func(any) (any, error)

// IndexMapper shifts the entity index of repeatable-group fields. It
// receives the record's position within the group, never the -1 sentinel.
type IndexMapper func(position int) int

// ValueMapper rewrites individual field values, e.g. wrapping signature
// images in a binary envelope.
type ValueMapper func(any) any

// Mappers bundles the per-field-key transforms applied by
// ProcessEntityData.
type Mappers struct {
	Key   map[string]KeyMapper
	Index map[string]IndexMapper
	Value map[string]ValueMapper
}

// ProcessEntityData converts a form document into EntityData: every field
// key is parsed into (index, entitySet, propertyType), resolved through
// the id maps, and its value appended to the addressed record. Empty
// values (nil or "") are dropped. Section iteration order is fixed by
// sorting so the output is deterministic.
func ProcessEntityData(
	doc document.Document,
	entitySetIDs edm.EntitySetIDs,
	propertyTypeIDs edm.PropertyTypeIDs,
	mappers Mappers,
) (EntityData, error) {

	out := EntityData{}

	sectionKeys := make([]string, 0, len(doc))
	for key := range doc {
		sectionKeys = append(sectionKeys, key)
	}
	sort.Strings(sectionKeys)

	for _, sectionKey := range sectionKeys {
		if fields := document.Section(doc, sectionKey); fields != nil {
			if err := processFields(out, fields, 0, false, entitySetIDs, propertyTypeIDs, mappers); err != nil {
				return nil, fmt.Errorf("section %q: %w", sectionKey, err)
			}
			continue
		}
		items, err := document.List(doc, sectionKey)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sectionKey, err)
		}
		for position, fields := range items {
			if err := processFields(out, fields, position, true, entitySetIDs, propertyTypeIDs, mappers); err != nil {
				return nil, fmt.Errorf("section %q[%d]: %w", sectionKey, position, err)
			}
		}
	}

	return out, nil
}

func processFields(
	out EntityData,
	fields document.Fields,
	position int,
	repeatable bool,
	entitySetIDs edm.EntitySetIDs,
	propertyTypeIDs edm.PropertyTypeIDs,
	mappers Mappers,
) error {

	fieldKeys := make([]string, 0, len(fields))
	for key := range fields {
		fieldKeys = append(fieldKeys, key)
	}
	sort.Strings(fieldKeys)

	for _, fieldKey := range fieldKeys {
		addr, err := address.ParseEntityAddressKey(fieldKey)
		if err != nil {
			return err
		}

		index := addr.Index
		if index == address.RepeatableIndex {
			if !repeatable {
				return fmt.Errorf("repeatable key %q outside a repeatable section", fieldKey)
			}
			index = position
			if mapper, ok := mappers.Index[fieldKey]; ok {
				index = mapper(position)
			}
		}

		value := fields[fieldKey]
		if mapper, ok := mappers.Key[fieldKey]; ok {
			value, err = mapper(value)
			if err != nil {
				return fmt.Errorf("key mapper for %q: %w", fieldKey, err)
			}
		}
		if mapper, ok := mappers.Value[fieldKey]; ok {
			value = mapper(value)
		}
		if value == nil || value == "" {
			continue
		}

		entitySetID, ok := entitySetIDs[addr.EntitySet]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEntitySet, addr.EntitySet)
		}
		propertyTypeID, ok := propertyTypeIDs[addr.PropertyType]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPropertyType, addr.PropertyType)
		}

		values, ok := value.([]any)
		if !ok {
			values = []any{value}
		}

		records := out[entitySetID]
		for len(records) <= index {
			records = append(records, nil)
		}
		if records[index] == nil {
			records[index] = EntityRecord{}
		}
		records[index][propertyTypeID] = append(records[index][propertyTypeID], values...)
		out[entitySetID] = records
	}

	return nil
}

// ProcessAssociationEntityData resolves logical associations into the
// edge records the data API accepts, preserving input order per
// association entity set.
func ProcessAssociationEntityData(
	associations []Association,
	entitySetIDs edm.EntitySetIDs,
	propertyTypeIDs edm.PropertyTypeIDs,
) (AssociationData, error) {

	out := AssociationData{}

	for i, assoc := range associations {
		entitySetID, ok := entitySetIDs[assoc.EntitySet]
		if !ok {
			return nil, fmt.Errorf("association %d: %w: %q", i, ErrUnknownEntitySet, assoc.EntitySet)
		}
		srcEntitySetID, ok := entitySetIDs[assoc.SrcEntitySet]
		if !ok {
			return nil, fmt.Errorf("association %d: %w: %q", i, ErrUnknownEntitySet, assoc.SrcEntitySet)
		}
		dstEntitySetID, ok := entitySetIDs[assoc.DstEntitySet]
		if !ok {
			return nil, fmt.Errorf("association %d: %w: %q", i, ErrUnknownEntitySet, assoc.DstEntitySet)
		}

		data := EntityRecord{}
		for fqn, values := range assoc.Properties {
			propertyTypeID, ok := propertyTypeIDs[fqn]
			if !ok {
				return nil, fmt.Errorf("association %d: %w: %q", i, ErrUnknownPropertyType, fqn)
			}
			data[propertyTypeID] = append([]any(nil), values...)
		}

		srcIndex := assoc.SrcIndex
		record := AssociationRecord{
			SrcEntitySetID: srcEntitySetID,
			SrcEntityIndex: &srcIndex,
			DstEntitySetID: dstEntitySetID,
			Data:           data,
		}
		if assoc.DstEntityKeyID != nil {
			keyID := *assoc.DstEntityKeyID
			record.DstEntityKeyID = &keyID
		} else {
			dstIndex := assoc.DstIndex
			record.DstEntityIndex = &dstIndex
		}

		out[entitySetID] = append(out[entitySetID], record)
	}

	return out, nil
}
