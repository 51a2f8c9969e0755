package signing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/graph"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrMissingArtifact      = errors.New("missing signature artifact")
)

// VerifyResult reports a successful verification.
type VerifyResult struct {
	SignedAt time.Time
}

// VerifyGraph checks a submitted entity data set against its own embedded
// signature artifacts: it reads the recorded algorithm parameters, strips
// the signature and public-key entities to recover the signed payload,
// recomputes the canonical serialization, and verifies the signature.
func VerifyGraph(entityData graph.EntityData, entitySetIDs edm.EntitySetIDs, propertyTypeIDs edm.PropertyTypeIDs) (VerifyResult, error) {
	signatureRecord, err := singleRecord(entityData, entitySetIDs, edm.DigitalSignatures)
	if err != nil {
		return VerifyResult{}, err
	}
	publicKeyRecord, err := singleRecord(entityData, entitySetIDs, edm.PublicKeys)
	if err != nil {
		return VerifyResult{}, err
	}
	if len(signatureRecord) != 4 || len(publicKeyRecord) != 4 {
		return VerifyResult{}, ErrMalformedRecord
	}

	algorithm, err := firstString(signatureRecord, propertyTypeIDs, edm.OLAlgorithmName)
	if err != nil {
		return VerifyResult{}, err
	}
	hashFunction, err := firstString(signatureRecord, propertyTypeIDs, edm.OLHashFunctionName)
	if err != nil {
		return VerifyResult{}, err
	}
	curve, err := firstString(publicKeyRecord, propertyTypeIDs, edm.OLEllipticCurveName)
	if err != nil {
		return VerifyResult{}, err
	}
	if algorithm != AlgorithmName || hashFunction != HashFunctionName || curve != CurveName {
		return VerifyResult{}, fmt.Errorf("%w: %s/%s/%s", ErrUnsupportedAlgorithm, algorithm, curve, hashFunction)
	}

	signedAtRaw, err := firstString(signatureRecord, propertyTypeIDs, edm.OLDateTime)
	if err != nil {
		return VerifyResult{}, err
	}
	signedAt, err := time.Parse(time.RFC3339, signedAtRaw)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedRecord, signedAtRaw)
	}

	signature, err := envelopeBytes(signatureRecord, propertyTypeIDs, edm.OLSignatureData)
	if err != nil {
		return VerifyResult{}, err
	}
	publicKey, err := envelopeBytes(publicKeyRecord, propertyTypeIDs, edm.OLCryptoKey)
	if err != nil {
		return VerifyResult{}, err
	}

	// The payload that was signed is the entity data before the signature
	// artifacts were inserted.
	payload := entityData.Clone()
	delete(payload, entitySetIDs[edm.DigitalSignatures])
	delete(payload, entitySetIDs[edm.PublicKeys])
	payloadBytes, err := CanonicalBytes(payload)
	if err != nil {
		return VerifyResult{}, err
	}

	if err := VerifyDetached(publicKey, payloadBytes, signature); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{SignedAt: signedAt.UTC()}, nil
}

func singleRecord(entityData graph.EntityData, entitySetIDs edm.EntitySetIDs, entitySet edm.EntitySet) (graph.EntityRecord, error) {
	entitySetID, ok := entitySetIDs[entitySet]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownEntitySet, entitySet)
	}
	records := entityData[entitySetID]
	if len(records) != 1 || records[0] == nil {
		return nil, fmt.Errorf("%w: expected exactly one %q record", ErrMissingArtifact, entitySet)
	}
	return records[0], nil
}

func firstString(record graph.EntityRecord, propertyTypeIDs edm.PropertyTypeIDs, fqn edm.FQN) (string, error) {
	propertyTypeID, ok := propertyTypeIDs[fqn]
	if !ok {
		return "", fmt.Errorf("%w: %q", graph.ErrUnknownPropertyType, fqn)
	}
	values := record[propertyTypeID]
	if len(values) == 0 {
		return "", fmt.Errorf("%w: property %q", ErrMissingArtifact, fqn)
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: property %q is not a string", ErrMissingArtifact, fqn)
	}
	return s, nil
}

// envelopeBytes extracts and decodes a binary envelope value, accepting
// both the in-memory struct form and the decoded-JSON map form.
func envelopeBytes(record graph.EntityRecord, propertyTypeIDs edm.PropertyTypeIDs, fqn edm.FQN) ([]byte, error) {
	propertyTypeID, ok := propertyTypeIDs[fqn]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownPropertyType, fqn)
	}
	values := record[propertyTypeID]
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: property %q", ErrMissingArtifact, fqn)
	}

	var data string
	switch envelope := values[0].(type) {
	case graph.BinaryEnvelope:
		data = envelope.Data
	case map[string]any:
		data, _ = envelope["data"].(string)
	default:
		return nil, fmt.Errorf("%w: property %q is not a binary envelope", ErrMissingArtifact, fqn)
	}
	if data == "" {
		return nil, fmt.Errorf("%w: property %q has no data", ErrMissingArtifact, fqn)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: property %q: %v", ErrMissingArtifact, fqn, err)
	}
	return decoded, nil
}
