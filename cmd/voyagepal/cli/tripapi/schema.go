package tripapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://voyagepal.schemas.local/"

// Schema names, one per response shape.
const (
	SchemaInitialSuggestions = "initial_suggestions"
	SchemaDetailedAnalysis   = "detailed_analysis"
	SchemaOptimizedItinerary = "optimized_itinerary"
	SchemaToken              = "token"
	SchemaMessage            = "message"
	SchemaSavedTrips         = "saved_trips"
	SchemaPreferences        = "preferences"
)

var loadSchemas = sync.OnceValues(compileSchemas)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("schema load failed for %s: %w", e.Name(), err)
		}
	}

	names := []string{
		SchemaInitialSuggestions, SchemaDetailedAnalysis, SchemaOptimizedItinerary,
		SchemaToken, SchemaMessage, SchemaSavedTrips, SchemaPreferences,
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		compiled, err := c.Compile(schemaBaseURL + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("schema compile failed for %s: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
}

// ValidateBody checks a response body against the named schema.
func ValidateBody(name string, body []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return &SchemaError{Schema: name, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return &SchemaError{Schema: name, Err: err}
	}
	return nil
}
