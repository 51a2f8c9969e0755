package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/graph"
	"github.com/openlattice/lattice-consent/pkg/signing"
)

const usage = "usage: consentctl verify --bundle <path>"

func main() {
	if len(os.Args) < 2 {
		failSummary("", usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "verify":
		runVerify(os.Args[2:])
	default:
		failSummary("", "unknown command")
		os.Exit(2)
	}
}

// bundle is a submitted consent graph saved alongside the id mappings that
// were in effect when it was created, which is everything offline
// verification needs.
type bundle struct {
	Entities        graph.EntityData     `json:"entities"`
	EntitySetIDs    map[string]uuid.UUID `json:"entitySetIds"`
	PropertyTypeIDs map[string]uuid.UUID `json:"propertyTypeIds"`
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	bundlePath := fs.String("bundle", "", "path to consent bundle json")
	if err := fs.Parse(args); err != nil {
		failSummary("", err.Error())
		os.Exit(2)
	}
	if strings.TrimSpace(*bundlePath) == "" {
		failSummary("", "--bundle is required")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*bundlePath)
	if err != nil {
		failSummary("", "read bundle failed: "+err.Error())
		os.Exit(1)
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		failSummary("", "parse bundle failed: "+err.Error())
		os.Exit(1)
	}

	entitySetIDs := edm.EntitySetIDs{}
	for name, id := range b.EntitySetIDs {
		entitySetIDs[edm.EntitySet(name)] = id
	}
	propertyTypeIDs := edm.PropertyTypeIDs{}
	for fqn, id := range b.PropertyTypeIDs {
		propertyTypeIDs[edm.FQN(fqn)] = id
	}

	result, err := signing.VerifyGraph(b.Entities, entitySetIDs, propertyTypeIDs)
	if err != nil {
		failSummary("", err.Error())
		os.Exit(1)
	}
	passSummary(result.SignedAt.Format(time.RFC3339))
}

func passSummary(signedAt string) {
	fmt.Printf("{\"status\":\"PASS\",\"signed_at\":%s,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(signedAt),
		time.Now().UTC().Format(time.RFC3339),
	)
}

func failSummary(signedAt, reason string) {
	fmt.Printf("{\"status\":\"FAIL\",\"signed_at\":%s,\"reason\":%s,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(signedAt),
		jsonQuote(reason),
		time.Now().UTC().Format(time.RFC3339),
	)
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
