package handler

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// submitSchema guards the submission intake before the typed parse: answers
// must be a non-empty object and the phase, when present, one of the known
// sections. Sibling `_images`/`_marks` keys are ordinary properties of the
// answers document.
var submitSchema = jsonschema.MustCompileString("submit.json", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["answers"],
	"properties": {
		"answers": {
			"type": "object",
			"minProperties": 1
		},
		"phase": {
			"enum": ["objective", "cq_sq", "final", ""]
		}
	}
}`)

func validateSubmitBody(body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	return submitSchema.Validate(doc)
}
