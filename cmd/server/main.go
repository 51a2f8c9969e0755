package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openlattice/lattice-consent/internal/config"
	"github.com/openlattice/lattice-consent/internal/launch"
	"github.com/openlattice/lattice-consent/pkg/consent"
	"github.com/openlattice/lattice-consent/pkg/dataapi"
	"github.com/openlattice/lattice-consent/pkg/document"
	"github.com/openlattice/lattice-consent/pkg/geo"
	"github.com/openlattice/lattice-consent/pkg/graph"
	"github.com/openlattice/lattice-consent/pkg/httpx"
	"github.com/openlattice/lattice-consent/pkg/schema"
	"github.com/openlattice/lattice-consent/pkg/signing"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Error().Err(err).Msg("configuration failed")
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	api := dataapi.NewClient(
		cfg.DataAPI.BaseURL,
		cfg.DataAPI.AuthToken,
		dataapi.WithHTTPClient(&http.Client{Timeout: cfg.DataAPITimeout()}),
		dataapi.WithLogger(log),
	)

	// The property type listing is stable for the lifetime of a deployment,
	// so it is loaded once at startup.
	bootCtx, cancel := context.WithTimeout(context.Background(), cfg.DataAPITimeout())
	propertyTypeIDs, err := api.GetPropertyTypeIDs(bootCtx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("failed to load property type ids")
		os.Exit(1)
	}

	srv := &server{
		coordinator: &consent.Coordinator{
			API:             api,
			Signer:          signing.ECDSAProvider{},
			PropertyTypeIDs: propertyTypeIDs,
			Log:             log,
		},
		tokenSecret: []byte(cfg.Launch.TokenSecret),
		tokenTTL:    cfg.LaunchTokenTTL(),
		log:         log,
	}

	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Post("/consent/launch", srv.handleLaunch)
	r.Get("/consent/context", srv.handleContext)
	r.Post("/consent/submit", srv.handleSubmit)

	log.Info().Str("addr", cfg.Server.ListenAddr).Msg("consent server listening")
	if err := http.ListenAndServe(cfg.Server.ListenAddr, r); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

type server struct {
	coordinator *consent.Coordinator
	tokenSecret []byte
	tokenTTL    time.Duration
	log         zerolog.Logger
}

// handleLaunch validates a launch parameter set and mints a signed token
// for it, so consent links can be handed out without exposing raw ids to
// tampering.
func (s *server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params map[string]string `json:"params"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	params := url.Values{}
	for key, value := range req.Params {
		params.Set(key, value)
	}
	if _, err := consent.ParseContext(params); err != nil {
		writeContextError(w, err)
		return
	}
	token, err := launch.Mint(s.tokenSecret, params, s.tokenTTL, time.Now())
	if err != nil {
		httpx.WriteError(w, 500, "TOKEN_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, 201, map[string]any{
		"request_id": httpx.NewRequestID(),
		"token":      token,
		"expires_in": int(s.tokenTTL.Seconds()),
	})
}

// handleContext resolves the launch context, fetches the form schema, and
// returns everything a form renderer needs: the schema pair, the derived
// requirements, and an initialized working document.
func (s *server) handleContext(w http.ResponseWriter, r *http.Request) {
	launchCtx, ok := s.resolveContext(w, r.URL.Query())
	if !ok {
		return
	}
	formSchema, err := s.coordinator.FetchSchema(r.Context(), launchCtx)
	if err != nil {
		writeSchemaError(w, err)
		return
	}
	requirements, err := schema.DeriveRequirements(formSchema)
	if err != nil {
		writeSchemaError(w, err)
		return
	}
	formData, err := schema.Initialize(document.Document{}, formSchema, time.Now())
	if err != nil {
		writeSchemaError(w, err)
		return
	}

	resp := map[string]any{
		"request_id":        httpx.NewRequestID(),
		"clientEntityKeyId": launchCtx.ClientEntityKeyID,
		"schema":            formSchema,
		"requirements": map[string]bool{
			"staff":   requirements.Staff,
			"witness": requirements.Witness,
		},
		"formData": formData,
	}
	if launchCtx.StaffEntityKeyID != nil {
		resp["staffEntityKeyId"] = *launchCtx.StaffEntityKeyID
	}
	httpx.WriteJSON(w, 200, resp)
}

// handleSubmit resolves the launch context, applies an optional acquired
// position to the document, and runs the full submission flow.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string            `json:"token"`
		Params   map[string]string `json:"params"`
		Data     document.Document `json:"data"`
		Position *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"position"`
	}
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
		return
	}
	values := url.Values{}
	if req.Token != "" {
		values.Set("token", req.Token)
	}
	for key, value := range req.Params {
		values.Set(key, value)
	}
	launchCtx, ok := s.resolveContext(w, values)
	if !ok {
		return
	}
	if len(req.Data) == 0 {
		httpx.WriteError(w, 400, "BAD_REQUEST", "data is required", nil)
		return
	}

	doc := req.Data
	if req.Position != nil {
		doc = schema.InitializeGeo(doc, geo.Position{
			Coords: geo.Coordinates{Latitude: req.Position.Latitude, Longitude: req.Position.Longitude},
		})
	}

	formSchema, err := s.coordinator.FetchSchema(r.Context(), launchCtx)
	if err != nil {
		writeSchemaError(w, err)
		return
	}
	outcome, err := s.coordinator.Submit(r.Context(), launchCtx, doc, formSchema)
	if err != nil {
		writeSubmitError(w, launchCtx, err)
		return
	}

	resp := map[string]any{
		"request_id":      httpx.NewRequestID(),
		"formEntityKeyId": outcome.FormEntityKeyID,
	}
	if outcome.RedirectURL != nil {
		resp["redirectUrl"] = outcome.RedirectURL.String()
	}
	if outcome.Channel != nil {
		resp["channel"] = outcome.Channel
	}
	httpx.WriteJSON(w, 200, resp)
}

// resolveContext turns either a launch token or raw query parameters into
// a validated consent context. Writes the error response itself.
func (s *server) resolveContext(w http.ResponseWriter, values url.Values) (*consent.Context, bool) {
	params := values
	if token := strings.TrimSpace(values.Get("token")); token != "" {
		resolved, err := launch.Resolve(s.tokenSecret, token)
		if err != nil {
			httpx.WriteError(w, 401, "INVALID_TOKEN", err.Error(), nil)
			return nil, false
		}
		params = resolved
	}
	launchCtx, err := consent.ParseContext(params)
	if err != nil {
		writeContextError(w, err)
		return nil, false
	}
	return launchCtx, true
}

func writeContextError(w http.ResponseWriter, err error) {
	var configErr *consent.ConfigError
	if errors.As(err, &configErr) {
		httpx.WriteError(w, 400, "INVALID_LAUNCH_CONTEXT", configErr.Reason, map[string]any{
			"param": configErr.Param,
		})
		return
	}
	httpx.WriteError(w, 400, "INVALID_LAUNCH_CONTEXT", err.Error(), nil)
}

func writeSchemaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrSchemaShape):
		httpx.WriteError(w, 502, "SCHEMA_ERROR", err.Error(), nil)
	case errors.Is(err, consent.ErrSchemaFetch):
		httpx.WriteError(w, 502, "SCHEMA_FETCH_FAILED", err.Error(), nil)
	default:
		httpx.WriteError(w, 500, "SCHEMA_ERROR", err.Error(), nil)
	}
}

func writeSubmitError(w http.ResponseWriter, launchCtx *consent.Context, err error) {
	var details any
	if msg := consent.FailureMessage(launchCtx); msg != nil {
		details = map[string]any{"channel": msg}
	}
	switch {
	case errors.Is(err, graph.ErrMissingRequiredField), errors.Is(err, schema.ErrWitnessCount):
		httpx.WriteError(w, 400, "BAD_REQUEST", err.Error(), details)
	case errors.Is(err, consent.ErrSubmit):
		httpx.WriteError(w, 502, "SUBMIT_FAILED", err.Error(), details)
	default:
		var configErr *consent.ConfigError
		if errors.As(err, &configErr) {
			httpx.WriteError(w, 400, "INVALID_LAUNCH_CONTEXT", configErr.Reason, map[string]any{"param": configErr.Param})
			return
		}
		httpx.WriteError(w, 500, "SUBMIT_ERROR", err.Error(), details)
	}
}
