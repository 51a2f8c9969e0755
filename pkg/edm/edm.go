// Package edm holds the entity data model vocabulary for consent
// submissions: property type FQNs, entity set names, and the id maps
// that bind them to a concrete backend deployment.
package edm

import "github.com/google/uuid"

// FQN is a fully-qualified property type name, e.g. "ol.datetime".
type FQN string

const (
	GenFullName         FQN = "general.fullname"
	LocationLatitude    FQN = "location.latitude"
	LocationLongitude   FQN = "location.longitude"
	OLAlgorithmName     FQN = "ol.algorithmname"
	OLCryptoKey         FQN = "ol.cryptokey"
	OLDateTime          FQN = "ol.datetime"
	OLDescription       FQN = "ol.description"
	OLEllipticCurveName FQN = "ol.ellipticcurvename"
	OLHashFunctionName  FQN = "ol.hashfunctionname"
	OLID                FQN = "ol.id"
	OLName              FQN = "ol.name"
	OLRole              FQN = "ol.role"
	OLSchema            FQN = "ol.schema"
	OLSignatureData     FQN = "ol.signaturedata"
	OLText              FQN = "ol.text"
	OLType              FQN = "ol.type"
	OLVersion           FQN = "ol.version"
)

// EntitySet is a logical entity set name. The backend only understands
// entity set ids; names are resolved through an EntitySetIDs map.
type EntitySet string

const (
	Clients              EntitySet = "clients"
	ConsentForms         EntitySet = "consentforms"
	ConsentFormSchemas   EntitySet = "consentformschemas"
	DigitalSignatures    EntitySet = "digitalsignatures"
	ElectronicSignatures EntitySet = "electronicsignatures"
	Location             EntitySet = "location"
	PublicKeys           EntitySet = "publickeys"
	Staff                EntitySet = "staff"
	Witnesses            EntitySet = "witnesses"
)

// Association entity sets.
const (
	DecryptedBy EntitySet = "decryptedby"
	Includes    EntitySet = "includes"
	LocatedAt   EntitySet = "locatedat"
	SignedBy    EntitySet = "signedby"
	Verifies    EntitySet = "verifies"
)

// SigningRole tags role-bearing associations.
type SigningRole string

const (
	RoleClient  SigningRole = "CLIENT"
	RoleStaff   SigningRole = "STAFF"
	RoleWitness SigningRole = "WITNESS"
)

// EntitySetIDs maps logical entity set names to deployment entity set ids.
type EntitySetIDs map[EntitySet]uuid.UUID

// PropertyTypeIDs maps property type FQNs to deployment property type ids.
type PropertyTypeIDs map[FQN]uuid.UUID
