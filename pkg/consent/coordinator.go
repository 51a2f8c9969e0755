package consent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlattice/lattice-consent/pkg/dataapi"
	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/graph"
	"github.com/openlattice/lattice-consent/pkg/schema"
	"github.com/openlattice/lattice-consent/pkg/signing"
)

var (
	ErrSchemaFetch = errors.New("consent form schema fetch failed")
	ErrSubmit      = errors.New("consent submission failed")
)

// Cross-frame status message vocabulary, for deployments that embed the
// form and listen on a message channel instead of configuring a redirect.
const (
	ActionSubmitConsent = "SUBMIT_CONSENT"
	StateSuccess        = "SUCCESS"
	StateFailure        = "FAILURE"
)

// ChannelMessage is the status message posted to the embedding host.
type ChannelMessage struct {
	ID    string       `json:"id"`
	Value ChannelValue `json:"value"`
}

type ChannelValue struct {
	Action string `json:"action"`
	State  string `json:"state"`
}

// Outcome is the result of a successful submission. At most one of
// RedirectURL and Channel is set: a configured redirect target wins over a
// message channel, and with neither configured the caller just resolves.
type Outcome struct {
	FormEntityKeyID uuid.UUID
	RedirectURL     *url.URL
	Channel         *ChannelMessage
}

// API is the external data collaborator the flow talks to.
type API interface {
	CreateEntityAndAssociationData(ctx context.Context, g dataapi.DataGraph) (dataapi.CreateResponse, error)
	GetEntityData(ctx context.Context, entitySetID, entityKeyID uuid.UUID) (dataapi.Entity, error)
}

// Coordinator orchestrates a consent session: schema fetch, graph
// assembly, signing, submission, and the post-submission outcome.
type Coordinator struct {
	API             API
	Signer          signing.Provider
	PropertyTypeIDs edm.PropertyTypeIDs
	Log             zerolog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// FetchSchema loads the form schema entity and decodes the serialized
// schema stored at the first ol.schema value.
func (c *Coordinator) FetchSchema(ctx context.Context, launch *Context) (*schema.Schema, error) {
	entitySetID, ok := launch.EntitySetIDs[edm.ConsentFormSchemas]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownEntitySet, edm.ConsentFormSchemas)
	}
	entity, err := c.API.GetEntityData(ctx, entitySetID, launch.SchemaEntityKeyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaFetch, err)
	}

	values := entity[string(edm.OLSchema)]
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: entity has no %q value", ErrSchemaFetch, edm.OLSchema)
	}
	serialized, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q value is not a string", ErrSchemaFetch, edm.OLSchema)
	}

	s, err := schema.Parse([]byte(serialized))
	if err != nil {
		return nil, err
	}
	c.Log.Debug().Str("schemaEntityKeyId", launch.SchemaEntityKeyID.String()).Msg("fetched consent form schema")
	return s, nil
}

// Submit assembles the submission graph from the finished document, signs
// it, validates the signed graph, and forwards it to the data API. The
// backend call is the only externally visible effect, so any failure before
// it leaves nothing behind, and a failure of the call itself commits
// nothing.
func (c *Coordinator) Submit(ctx context.Context, launch *Context, doc document.Document, s *schema.Schema) (*Outcome, error) {
	requirements, err := schema.DeriveRequirements(s)
	if err != nil {
		return nil, err
	}

	staffEntityKeyID := uuid.Nil
	if requirements.Staff {
		if launch.StaffEntityKeyID == nil {
			return nil, &ConfigError{Param: ParamStaffEKID, Reason: "required when the schema collects a staff signature"}
		}
		staffEntityKeyID = *launch.StaffEntityKeyID
	}

	timestamp := c.now()
	assembled, err := graph.Assemble(graph.Input{
		Document:          doc,
		Requirements:      requirements,
		ClientEntityKeyID: launch.ClientEntityKeyID,
		StaffEntityKeyID:  staffEntityKeyID,
		EntitySetIDs:      launch.EntitySetIDs,
		PropertyTypeIDs:   c.PropertyTypeIDs,
		Timestamp:         timestamp,
	})
	if err != nil {
		return nil, err
	}

	engine := signing.Engine{
		Provider:        c.Signer,
		EntitySetIDs:    launch.EntitySetIDs,
		PropertyTypeIDs: c.PropertyTypeIDs,
	}
	signed, err := engine.Sign(assembled, timestamp)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(signed); err != nil {
		return nil, err
	}

	response, err := c.API.CreateEntityAndAssociationData(ctx, dataapi.DataGraph{
		EntityData:      signed.EntityData,
		AssociationData: signed.AssociationData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	formEntitySetID := launch.EntitySetIDs[edm.ConsentForms]
	createdFormIDs := response.EntityKeyIDs[formEntitySetID]
	if len(createdFormIDs) == 0 {
		return nil, fmt.Errorf("%w: response has no created ids for the forms entity set", ErrSubmit)
	}
	formEntityKeyID := createdFormIDs[0]

	c.Log.Info().
		Str("clientEntityKeyId", launch.ClientEntityKeyID.String()).
		Str("formEntityKeyId", formEntityKeyID.String()).
		Msg("consent form submitted")

	outcome := &Outcome{FormEntityKeyID: formEntityKeyID}
	switch {
	case launch.RedirectURL != nil:
		outcome.RedirectURL = redirectWithResult(launch.RedirectURL, launch.ClientEntityKeyID, formEntityKeyID)
	case launch.ChannelID != "":
		outcome.Channel = &ChannelMessage{
			ID:    launch.ChannelID,
			Value: ChannelValue{Action: ActionSubmitConsent, State: StateSuccess},
		}
	}
	return outcome, nil
}

// FailureMessage is the channel message for a failed submission, for
// deployments with a message channel configured. Returns nil otherwise.
func FailureMessage(launch *Context) *ChannelMessage {
	if launch == nil || launch.ChannelID == "" {
		return nil
	}
	return &ChannelMessage{
		ID:    launch.ChannelID,
		Value: ChannelValue{Action: ActionSubmitConsent, State: StateFailure},
	}
}

// redirectWithResult rebuilds the redirect target with the result
// identifiers as its query string, replacing any existing query.
func redirectWithResult(target *url.URL, clientEntityKeyID, formEntityKeyID uuid.UUID) *url.URL {
	out := *target
	query := url.Values{}
	query.Set("clientEntityKeyId", clientEntityKeyID.String())
	query.Set("formEntityKeyId", formEntityKeyID.String())
	out.RawQuery = query.Encode()
	return &out
}
