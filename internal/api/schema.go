package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const authResponseSchema = `{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status":  {"type": "string"},
    "message": {"type": ["string", "null"]},
    "token":   {"type": ["string", "null"]},
    "user": {
      "type": ["object", "null"],
      "required": ["uid", "name", "email"],
      "properties": {
        "uid":     {"type": "integer"},
        "name":    {"type": "string"},
        "surname": {"type": ["string", "null"]},
        "email":   {"type": "string"},
        "role":    {"type": ["string", "null"]},
        "factoryReferenceID": {"type": ["string", "null"]}
      }
    }
  }
}`

// recordSchemas descreve cada tipo de registro de inventário aceito na borda.
var recordSchemas = map[string]string{
	KindComponents: `{
  "type": "object",
  "required": ["uid", "name"],
  "properties": {
    "uid":    {"type": "integer"},
    "name":   {"type": "string", "minLength": 1},
    "weight": {"type": ["number", "null"]},
    "status": {"type": ["string", "null"]}
  }
}`,
	KindMoulds: `{
  "type": "object",
  "required": ["uid", "name"],
  "properties": {
    "uid":       {"type": "integer"},
    "name":      {"type": "string", "minLength": 1},
    "cavities":  {"type": ["integer", "null"], "minimum": 0},
    "cycleTime": {"type": ["number", "null"], "minimum": 0}
  }
}`,
	KindMachines: `{
  "type": "object",
  "required": ["uid", "name"],
  "properties": {
    "uid":           {"type": "integer"},
    "name":          {"type": "string", "minLength": 1},
    "machineNumber": {"type": ["string", "null"]}
  }
}`,
	KindUsers: `{
  "type": "object",
  "required": ["uid", "name", "email"],
  "properties": {
    "uid":   {"type": "integer"},
    "name":  {"type": "string"},
    "email": {"type": "string", "minLength": 3}
  }
}`,
	KindFactories: `{
  "type": "object",
  "required": ["uid", "name", "factoryReferenceID"],
  "properties": {
    "uid":                {"type": "integer"},
    "name":               {"type": "string"},
    "factoryReferenceID": {"type": "string", "minLength": 1}
  }
}`,
}

var (
	authSchema    = mustSchema(authResponseSchema)
	recordsSchema = compileRecordSchemas()
)

func mustSchema(def string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(def))
	if err != nil {
		panic(fmt.Sprintf("api: schema inválido: %v", err))
	}
	return schema
}

func compileRecordSchemas() map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(recordSchemas))
	for kind, item := range recordSchemas {
		out[kind] = mustSchema(`{"type": "array", "items": ` + item + `}`)
	}
	return out
}

// ValidateAuthResponse verifica o formato da resposta de login antes do uso.
func ValidateAuthResponse(raw []byte) error {
	return validate("auth", authSchema, raw)
}

// ValidateRecords extrai a lista (array puro ou envelope {"data": [...]}) e valida cada item.
func ValidateRecords(kind string, raw []byte) (json.RawMessage, error) {
	schema, ok := recordsSchema[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, kind)
	}
	list, err := recordList(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := validate(kind, schema, list); err != nil {
		return nil, err
	}
	return list, nil
}

func recordList(kind string, raw []byte) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return json.RawMessage(trimmed), nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, &ValidationError{Kind: kind, Fields: []FieldError{{Field: "(root)", Message: "JSON inválido"}}}
	}
	data := strings.TrimSpace(string(envelope.Data))
	if data == "" || data == "null" {
		return json.RawMessage("[]"), nil
	}
	return json.RawMessage(data), nil
}

func validate(kind string, schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Kind: kind, Fields: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]FieldError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		fields = append(fields, FieldError{Field: e.Field(), Message: e.Description()})
	}
	return &ValidationError{Kind: kind, Fields: fields}
}
