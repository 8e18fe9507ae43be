package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/panbanda/vitals/pkg/models"
)

//go:embed schema.json
var schemaJSON string

// Validate checks a marshaled report against the published schema. Callers
// emitting machine-readable reports can use it as a self-check; the test
// suite uses it to pin the output shape.
func Validate(r *models.Report) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("report.schema.json", schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile("report.schema.json")
	if err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
