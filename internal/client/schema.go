package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const tableSchema = `{
	"type": "object",
	"properties": {
		"title":  {"type": "string"},
		"header": {"type": "array", "items": {"type": "string"}},
		"rows":   {"type": "array", "items": {"type": "array", "items": {"type": ["string", "number", "null"]}}}
	}
}`

const dataSchema = `{
	"type": "object",
	"properties": {
		"text_content": {"type": ["string", "null"]},
		"tables":       {"type": ["array", "null"], "items": ` + tableSchema + `},
		"key_fields":   {"type": ["object", "null"]}
	}
}`

const resultsSchema = `{
	"type": ["object", "null"],
	"properties": {
		"extracted_data": ` + dataSchema + `,
		"cleaned_data":   ` + dataSchema + `,
		"analysis": {
			"type": "object",
			"properties": {
				"summary":   {"type": ["string", "null"]},
				"keywords":  {"type": ["array", "null"], "items": {"type": "string"}},
				"sentiment": {"type": ["string", "null"]}
			}
		},
		"charts_data": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"properties": {
					"type":  {"type": "string"},
					"title": {"type": "string"},
					"data":  {"type": "array", "items": {"type": "object"}}
				}
			}
		}
	}
}`

const statusSchema = `{"type": "string", "enum": ["pending", "processing", "completed", "failed"]}`

// snapshotSchema describes GET jobs/{job_id}.
const snapshotSchema = `{
	"type": "object",
	"required": ["job_id", "status"],
	"properties": {
		"job_id":    {"type": ["string", "integer"]},
		"file_name": {"type": ["string", "null"]},
		"status":    ` + statusSchema + `,
		"progress":  {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"message":   {"type": ["string", "null"]},
		"results":   ` + resultsSchema + `,
		"download_urls": {
			"type": ["object", "null"],
			"properties": {"csv": {"type": "string"}, "json": {"type": "string"}}
		},
		"created_at": {"type": ["string", "null"]},
		"updated_at": {"type": ["string", "null"]}
	}
}`

// handleSchema describes POST jobs/.
const handleSchema = `{
	"type": "object",
	"required": ["job_id"],
	"properties": {
		"job_id":    {"type": ["string", "integer"]},
		"file_name": {"type": ["string", "null"]},
		"status":    ` + statusSchema + `,
		"message":   {"type": ["string", "null"]}
	}
}`

// healthSchema describes GET /health at the service root.
const healthSchema = `{"type": "object", "required": ["status"], "properties": {"status": {"type": "string"}}}`

const listSchema = `{"type": "array", "items": ` + snapshotSchema + `}`

type schemas struct {
	snapshot *jsonschema.Schema
	handle   *jsonschema.Schema
	list     *jsonschema.Schema
	health   *jsonschema.Schema
}

func compileSchemas() (schemas, error) {
	var s schemas
	var err error
	if s.snapshot, err = jsonschema.CompileString("snapshot.json", snapshotSchema); err != nil {
		return s, fmt.Errorf("compile snapshot schema: %w", err)
	}
	if s.handle, err = jsonschema.CompileString("handle.json", handleSchema); err != nil {
		return s, fmt.Errorf("compile handle schema: %w", err)
	}
	if s.list, err = jsonschema.CompileString("list.json", listSchema); err != nil {
		return s, fmt.Errorf("compile list schema: %w", err)
	}
	if s.health, err = jsonschema.CompileString("health.json", healthSchema); err != nil {
		return s, fmt.Errorf("compile health schema: %w", err)
	}
	return s, nil
}

// validateJSON checks data against schema before it is decoded into Go types.
func validateJSON(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
