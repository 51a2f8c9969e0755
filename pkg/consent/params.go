// Package consent coordinates the consent-form flow: resolving the launch
// context from query string parameters, fetching the form schema, and
// submitting the assembled and signed graph.
package consent

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/openlattice/lattice-consent/pkg/edm"
)

// Query string parameter names. The launch URL carries every entity set id
// the flow writes to, plus the entity key ids of the pre-existing client,
// schema, and staff entities.
const (
	ParamClientsESID              = "CLIENTS_ESID"
	ParamConsentFormsESID         = "CONSENT_FORMS_ESID"
	ParamConsentFormSchemasESID   = "CONSENT_FORM_SCHEMAS_ESID"
	ParamDecryptedByESID          = "DECRYPTED_BY_ESID"
	ParamDigitalSignaturesESID    = "DIGITAL_SIGNATURES_ESID"
	ParamElectronicSignaturesESID = "ELECTRONIC_SIGNATURES_ESID"
	ParamIncludesESID             = "INCLUDES_ESID"
	ParamLocatedAtESID            = "LOCATED_AT_ESID"
	ParamLocationESID             = "LOCATION_ESID"
	ParamPublicKeysESID           = "PUBLIC_KEYS_ESID"
	ParamSignedByESID             = "SIGNED_BY_ESID"
	ParamStaffESID                = "STAFF_ESID"
	ParamVerifiesESID             = "VERIFIES_ESID"
	ParamWitnessesESID            = "WITNESSES_ESID"

	ParamClientEKID = "CLIENT_EKID"
	ParamSchemaEKID = "SCHEMA_EKID"
	ParamStaffEKID  = "STAFF_EKID"

	ParamRedirectURL = "REDIRECT_URL"
	ParamChannelID   = "CHANNEL_ID"
)

// entitySetParams maps each required entity set id parameter to the entity
// set it identifies.
var entitySetParams = map[string]edm.EntitySet{
	ParamClientsESID:              edm.Clients,
	ParamConsentFormsESID:         edm.ConsentForms,
	ParamConsentFormSchemasESID:   edm.ConsentFormSchemas,
	ParamDecryptedByESID:          edm.DecryptedBy,
	ParamDigitalSignaturesESID:    edm.DigitalSignatures,
	ParamElectronicSignaturesESID: edm.ElectronicSignatures,
	ParamIncludesESID:             edm.Includes,
	ParamLocatedAtESID:            edm.LocatedAt,
	ParamLocationESID:             edm.Location,
	ParamPublicKeysESID:           edm.PublicKeys,
	ParamSignedByESID:             edm.SignedBy,
	ParamStaffESID:                edm.Staff,
	ParamVerifiesESID:             edm.Verifies,
	ParamWitnessesESID:            edm.Witnesses,
}

// requiredEntityKeyParams are the entity key id parameters that must always
// be present. STAFF_EKID is intentionally absent: whether a staff signature
// is needed is only known after the schema is fetched, so it is validated
// at submit time instead.
var requiredEntityKeyParams = []string{ParamClientEKID, ParamSchemaEKID}

// ConfigError reports an invalid or missing launch parameter.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid launch context: %s: %s", e.Param, e.Reason)
}

// Context is the resolved launch context. It is built once at flow start
// and treated as immutable for the rest of the session.
type Context struct {
	EntitySetIDs      edm.EntitySetIDs
	ClientEntityKeyID uuid.UUID
	SchemaEntityKeyID uuid.UUID
	StaffEntityKeyID  *uuid.UUID
	RedirectURL       *url.URL
	ChannelID         string
}

// ParseContext resolves a launch context from query string values. Every
// entity set id parameter and the client and schema entity key ids are
// required and must be valid UUIDs. STAFF_EKID, REDIRECT_URL, and
// CHANNEL_ID are optional; REDIRECT_URL must parse as an absolute URL when
// present.
func ParseContext(values url.Values) (*Context, error) {
	entitySetIDs := edm.EntitySetIDs{}
	for param, entitySet := range entitySetParams {
		id, err := requireUUID(values, param)
		if err != nil {
			return nil, err
		}
		entitySetIDs[entitySet] = id
	}

	c := &Context{EntitySetIDs: entitySetIDs}

	var err error
	if c.ClientEntityKeyID, err = requireUUID(values, ParamClientEKID); err != nil {
		return nil, err
	}
	if c.SchemaEntityKeyID, err = requireUUID(values, ParamSchemaEKID); err != nil {
		return nil, err
	}

	if raw := values.Get(ParamStaffEKID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &ConfigError{Param: ParamStaffEKID, Reason: fmt.Sprintf("must be a valid UUID, got %q", raw)}
		}
		c.StaffEntityKeyID = &id
	}

	if raw := values.Get(ParamRedirectURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return nil, &ConfigError{Param: ParamRedirectURL, Reason: fmt.Sprintf("must be an absolute URL, got %q", raw)}
		}
		c.RedirectURL = u
	}

	c.ChannelID = values.Get(ParamChannelID)

	return c, nil
}

func requireUUID(values url.Values, param string) (uuid.UUID, error) {
	raw := values.Get(param)
	if raw == "" {
		return uuid.UUID{}, &ConfigError{Param: param, Reason: "missing a required query string param"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, &ConfigError{Param: param, Reason: fmt.Sprintf("must be a valid UUID, got %q", raw)}
	}
	return id, nil
}
