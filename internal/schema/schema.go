// Package schema holds the JSON Schema of every document class and checks
// extracted payloads against it.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/docintel/internal/model"
)

//go:embed schemas/*.json
var files embed.FS

// Field is one top-level property of a class schema.
type Field struct {
	Name        string
	Types       []string
	Description string
	Required    bool
}

// Validator checks raw extractions against the compiled class schemas. It is
// safe for concurrent use.
type Validator struct {
	schemas map[model.DocumentType]*gojsonschema.Schema
	fields  map[model.DocumentType][]Field
}

// New compiles the embedded schema of every document class.
func New() (*Validator, error) {
	v := &Validator{
		schemas: make(map[model.DocumentType]*gojsonschema.Schema, len(model.AllDocumentTypes)),
		fields:  make(map[model.DocumentType][]Field, len(model.AllDocumentTypes)),
	}
	for _, t := range model.AllDocumentTypes {
		raw, err := Raw(t)
		if err != nil {
			return nil, err
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, eris.Wrapf(err, "schema: compile %s", t)
		}
		fields, err := parseFields(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "schema: fields of %s", t)
		}
		v.schemas[t] = s
		v.fields[t] = fields
	}
	return v, nil
}

// Raw returns the embedded schema document of t.
func Raw(t model.DocumentType) ([]byte, error) {
	b, err := files.ReadFile("schemas/" + string(t) + ".json")
	if err != nil {
		return nil, eris.Wrapf(err, "schema: no schema for %q", t)
	}
	return b, nil
}

// Validate checks doc against the schema of t and returns one issue per
// violation. A nil slice means doc conforms.
func (v *Validator) Validate(t model.DocumentType, doc map[string]any) ([]string, error) {
	s, ok := v.schemas[t]
	if !ok {
		return nil, eris.Errorf("schema: unknown document type %q", t)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, eris.Wrapf(err, "schema: validate %s", t)
	}
	if result.Valid() {
		return nil, nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		issues = append(issues, "schema: "+e.String())
	}
	return issues, nil
}

// Fields returns the top-level properties of t in declaration order.
func (v *Validator) Fields(t model.DocumentType) []Field {
	return append([]Field(nil), v.fields[t]...)
}

// Hint renders the fields of t as a JSON skeleton for prompts.
func (v *Validator) Hint(t model.DocumentType) string {
	fields := v.fields[t]
	var sb strings.Builder
	sb.WriteString("{\n")
	for i, f := range fields {
		marker := ""
		if f.Required {
			marker = ", required"
		}
		fmt.Fprintf(&sb, "  %q: <%s%s: %s>", f.Name, strings.Join(f.Types, "|"), marker, f.Description)
		if i < len(fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

type property struct {
	Type        json.RawMessage `json:"type"`
	Description string          `json:"description"`
}

// parseFields walks the properties object with a token decoder so fields
// keep their declaration order.
func parseFields(raw []byte) ([]Field, error) {
	var doc struct {
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	required := make(map[string]bool, len(doc.Required))
	for _, r := range doc.Required {
		required[r] = true
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Properties))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, eris.Errorf("unexpected token %v", tok)
		}
		var p property
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Name:        name,
			Types:       primaryTypes(p.Type),
			Description: p.Description,
			Required:    required[name],
		})
	}
	return fields, nil
}

// primaryTypes returns the declared types without "null".
func primaryTypes(raw json.RawMessage) []string {
	var types []string
	if err := json.Unmarshal(raw, &types); err != nil {
		var single string
		if json.Unmarshal(raw, &single) == nil {
			types = []string{single}
		}
	}
	out := types[:0]
	for _, t := range types {
		if t != "null" {
			out = append(out, t)
		}
	}
	return out
}
