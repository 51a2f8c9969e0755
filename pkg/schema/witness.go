package schema

import (
	"fmt"
	"time"

	"github.com/openlattice/lattice-consent/pkg/document"
)

// CountWitnesses returns the number of additional witnesses in the
// document. An absent witness section counts as zero; a witness section
// that is not a list is an error.
func CountWitnesses(doc document.Document) (int, error) {
	items, err := document.List(doc, WitnessSection)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWitnessCount, err)
	}
	return len(items), nil
}

// SyncWitnessNames copies each witness's signature name into the witness
// person record. The person name is derived, never authoritative: clients
// and staff always have a pre-existing person entity, witnesses do not, so
// only witness names are duplicated onto the person record.
func SyncWitnessNames(doc document.Document) (document.Document, error) {
	count, err := CountWitnesses(doc)
	if err != nil {
		return nil, err
	}
	next := doc
	for i := 0; i < count; i++ {
		items, err := document.List(next, WitnessSection)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWitnessCount, err)
		}
		name := items[i][WitnessSignatureNameKey]
		next, err = document.SetListField(next, WitnessSection, i, WitnessPersonNameKey, name)
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

// OnEdit reconciles a freshly edited document against the previous one:
// witness names are re-synced on every change, and when the edit grew the
// witness list by net one, the new last row gets today's date stamped into
// its signature date. The second return value is false when the computed
// document equals the previous one, letting callers skip redundant state
// transitions.
func OnEdit(prev, next document.Document, now time.Time) (document.Document, bool, error) {
	countBefore, err := CountWitnesses(prev)
	if err != nil {
		return nil, false, err
	}
	countAfter, err := CountWitnesses(next)
	if err != nil {
		return nil, false, err
	}

	result, err := SyncWitnessNames(next)
	if err != nil {
		return nil, false, err
	}

	if countAfter > countBefore && countAfter > 0 {
		result, err = document.SetListField(
			result, WitnessSection, countAfter-1, WitnessSignatureDateKey, now.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return nil, false, err
		}
	}

	if document.Equal(prev, result) {
		return prev, false, nil
	}
	return result, true, nil
}
