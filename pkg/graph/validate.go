package graph

import (
	"fmt"

	"github.com/google/uuid"
)

// Validate checks the dangling-edge invariant: every association endpoint
// addressed by index must land on a populated record in the entity data.
// Endpoints addressed by entity key id belong to pre-existing entities and
// are the backend's to verify. A violation is a construction defect, never
// a retryable condition.
func Validate(g *Graph) error {
	for entitySetID, records := range g.AssociationData {
		for i, record := range records {
			if record.SrcEntityIndex != nil {
				if err := checkEndpoint(g.EntityData, record.SrcEntitySetID, *record.SrcEntityIndex); err != nil {
					return fmt.Errorf("association set %s edge %d source: %w", entitySetID, i, err)
				}
			}
			if record.DstEntityIndex != nil {
				if err := checkEndpoint(g.EntityData, record.DstEntitySetID, *record.DstEntityIndex); err != nil {
					return fmt.Errorf("association set %s edge %d destination: %w", entitySetID, i, err)
				}
			}
		}
	}
	return nil
}

func checkEndpoint(entityData EntityData, entitySetID uuid.UUID, index int) error {
	records, ok := entityData[entitySetID]
	if !ok {
		return fmt.Errorf("%w: entity set %s absent", ErrDanglingEdge, entitySetID)
	}
	if index < 0 || index >= len(records) || records[index] == nil {
		return fmt.Errorf("%w: entity set %s has no record at index %d", ErrDanglingEdge, entitySetID, index)
	}
	return nil
}
