package assistant

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// responseSchema is the structured-output contract for the final generation
// call. It is declared as JSON Schema and converted for the Gemini API, so
// the same contract could be served to any schema-aware consumer.
var responseSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"answer": {
			Type:        "string",
			Description: "The assistant's reply to the user, in the user's language",
		},
		"follow_up_question": {
			Type:        "string",
			Description: "One short question that moves the conversation forward",
		},
		"recommended_books": {
			Type:        "array",
			Description: "Books recommended in the answer. Only include items returned by tools in this conversation.",
			Items:       recommendationItemSchema,
		},
		"recommended_articles": {
			Type:        "array",
			Description: "Articles recommended in the answer. Only include items returned by tools in this conversation.",
			Items:       recommendationItemSchema,
		},
	},
	Required: []string{"answer"},
}

var recommendationItemSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"id": {
			Type:        "integer",
			Description: "Catalog ID exactly as returned by a tool",
		},
		"title": {
			Type:        "string",
			Description: "Item title",
		},
	},
	Required: []string{"id"},
}

// convertSchema converts a JSON Schema into the genai schema dialect
func convertSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if schema.Description != "" {
		out.Description = schema.Description
	}

	if len(schema.Enum) > 0 {
		out.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := convertSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		out.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
