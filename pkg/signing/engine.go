package signing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/graph"
)

// ErrMalformedRecord reports a signature or public-key record that does
// not have exactly four properties. It indicates a code defect, never a
// transient condition, and is not retried.
var ErrMalformedRecord = errors.New("expected entity data to have 4 properties")

// Engine augments an assembled graph with digital signature artifacts.
type Engine struct {
	Provider        Provider
	EntitySetIDs    edm.EntitySetIDs
	PropertyTypeIDs edm.PropertyTypeIDs
}

// CanonicalBytes is the serialization that gets signed. It must be the
// same function at sign time and verify time: encoding/json marshals map
// keys in sorted order, which makes the byte sequence deterministic for a
// given entity data value.
func CanonicalBytes(entityData graph.EntityData) ([]byte, error) {
	return json.Marshal(entityData)
}

// Sign generates a fresh key pair, signs the canonical serialization of
// the graph's entity data, and returns a new graph extended with the
// signature and public-key entities plus their verification edges. The
// input graph is not modified.
func (e *Engine) Sign(g *graph.Graph, timestamp time.Time) (*graph.Graph, error) {
	ts := timestamp.UTC().Format(time.RFC3339)

	keyPair, err := e.Provider.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("key pair generation: %w", err)
	}
	publicKey, err := e.Provider.ExportPublicKey(keyPair.Public)
	if err != nil {
		return nil, fmt.Errorf("public key export: %w", err)
	}

	payload, err := CanonicalBytes(g.EntityData)
	if err != nil {
		return nil, fmt.Errorf("entity data serialization: %w", err)
	}
	signature, err := e.Provider.Sign(keyPair.Private, payload)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	signatureRecord, err := e.buildRecord(ts, map[edm.FQN]any{
		edm.OLHashFunctionName: HashFunctionName,
		edm.OLSignatureData: graph.BinaryEnvelope{
			Data:        base64.StdEncoding.EncodeToString(signature),
			ContentType: graph.ContentTypeOctetStream,
		},
	})
	if err != nil {
		return nil, err
	}
	publicKeyRecord, err := e.buildRecord(ts, map[edm.FQN]any{
		edm.OLEllipticCurveName: CurveName,
		edm.OLCryptoKey: graph.BinaryEnvelope{
			Data:        base64.StdEncoding.EncodeToString(publicKey),
			ContentType: graph.ContentTypeOctetStream,
		},
	})
	if err != nil {
		return nil, err
	}

	signaturesID, ok := e.EntitySetIDs[edm.DigitalSignatures]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownEntitySet, edm.DigitalSignatures)
	}
	publicKeysID, ok := e.EntitySetIDs[edm.PublicKeys]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownEntitySet, edm.PublicKeys)
	}

	entityData := g.EntityData.Clone()
	entityData[signaturesID] = []graph.EntityRecord{signatureRecord}
	entityData[publicKeysID] = []graph.EntityRecord{publicKeyRecord}

	edges, err := graph.ProcessAssociationEntityData(verificationEdges(ts), e.EntitySetIDs, e.PropertyTypeIDs)
	if err != nil {
		return nil, err
	}
	associationData := g.AssociationData.Clone()
	for entitySetID, records := range edges {
		associationData[entitySetID] = append(associationData[entitySetID], records...)
	}

	return &graph.Graph{EntityData: entityData, AssociationData: associationData}, nil
}

// buildRecord constructs a four-property record: timestamp, algorithm
// name, and the two caller-supplied properties.
func (e *Engine) buildRecord(ts string, extra map[edm.FQN]any) (graph.EntityRecord, error) {
	properties := map[edm.FQN]any{
		edm.OLDateTime:      ts,
		edm.OLAlgorithmName: AlgorithmName,
	}
	for fqn, value := range extra {
		properties[fqn] = value
	}

	record := graph.EntityRecord{}
	for fqn, value := range properties {
		propertyTypeID, ok := e.PropertyTypeIDs[fqn]
		if !ok {
			return nil, fmt.Errorf("%w: %q", graph.ErrUnknownPropertyType, fqn)
		}
		record[propertyTypeID] = []any{value}
	}
	if len(record) != 4 {
		return nil, fmt.Errorf("%w: got %d", ErrMalformedRecord, len(record))
	}
	return record, nil
}

func verificationEdges(ts string) []graph.Association {
	stamped := func() map[edm.FQN][]any {
		return map[edm.FQN][]any{edm.OLDateTime: {ts}}
	}
	return []graph.Association{
		{
			EntitySet: edm.DecryptedBy, SrcIndex: 0, SrcEntitySet: edm.DigitalSignatures,
			DstIndex: 0, DstEntitySet: edm.PublicKeys, Properties: stamped(),
		},
		{
			EntitySet: edm.Verifies, SrcIndex: 0, SrcEntitySet: edm.DigitalSignatures,
			DstIndex: 0, DstEntitySet: edm.ConsentForms, Properties: stamped(),
		},
		{
			EntitySet: edm.Verifies, SrcIndex: 0, SrcEntitySet: edm.PublicKeys,
			DstIndex: 0, DstEntitySet: edm.ConsentForms, Properties: stamped(),
		},
	}
}
