// Package signing generates the per-submission key pair, signs the
// canonical serialization of the assembled entity data, and packages the
// signature and public key as entities with verification edges.
package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
)

// Fixed signing parameters. They are recorded on the signature and
// public-key entities so verification is self-describing instead of
// depending on engine defaults.
const (
	AlgorithmName    = "ECDSA"
	CurveName        = "P-256"
	HashFunctionName = "SHA-256"
)

var (
	ErrInvalidKeyEncoding = errors.New("invalid public key encoding")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnsupportedParams  = errors.New("unsupported signing parameters")
)

// KeyPair is a freshly generated asymmetric key pair. Key pairs are never
// reused across submission attempts.
type KeyPair struct {
	Public  crypto.PublicKey
	Private crypto.PrivateKey
}

// Provider is the platform cryptographic capability: key generation,
// public key export, and signing.
type Provider interface {
	GenerateKeyPair() (*KeyPair, error)
	ExportPublicKey(pub crypto.PublicKey) ([]byte, error)
	Sign(priv crypto.PrivateKey, data []byte) ([]byte, error)
}

// ECDSAProvider signs with ECDSA over P-256 and SHA-256. Public keys are
// exported as uncompressed EC points (65 bytes, 0x04 || X || Y) and
// signatures as raw r || s (64 bytes), the same encodings WebCrypto
// produces for ES256.
type ECDSAProvider struct{}

func (ECDSAProvider) GenerateKeyPair() (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: &key.PublicKey, Private: key}, nil
}

func (ECDSAProvider) ExportPublicKey(pub crypto.PublicKey) ([]byte, error) {
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedParams
	}
	out := make([]byte, 65)
	out[0] = 0x04
	key.X.FillBytes(out[1:33])
	key.Y.FillBytes(out[33:65])
	return out, nil
}

func (ECDSAProvider) Sign(priv crypto.PrivateKey, data []byte) ([]byte, error) {
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedParams
	}
	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// VerifyDetached checks a raw r || s signature over data against an
// uncompressed-point public key.
func VerifyDetached(publicKey, data, signature []byte) error {
	if len(publicKey) != 65 || publicKey[0] != 0x04 {
		return ErrInvalidKeyEncoding
	}
	curve := elliptic.P256()
	x := new(big.Int).SetBytes(publicKey[1:33])
	y := new(big.Int).SetBytes(publicKey[33:65])
	if !curve.IsOnCurve(x, y) {
		return ErrInvalidKeyEncoding
	}
	if len(signature) != 64 {
		return ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	digest := sha256.Sum256(data)
	pub := ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if !ecdsa.Verify(&pub, digest[:], r, s) {
		return ErrInvalidSignature
	}
	return nil
}
