package gen

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"
)

func TestConvSchema(t *testing.T) {
	in := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"quotes": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"text":   {Type: "string", Description: "verbatim quote"},
						"weight": {Type: "number"},
					},
					Required: []string{"text"},
				},
			},
			"count": {Type: "integer"},
		},
		Required: []string{"quotes"},
	}

	got := convSchema(in)
	if got.Type != genai.TypeObject {
		t.Errorf("root type = %v; want object", got.Type)
	}
	quotes := got.Properties["quotes"]
	if quotes == nil || quotes.Type != genai.TypeArray {
		t.Fatalf("quotes schema = %+v; want array", quotes)
	}
	item := quotes.Items
	if item.Type != genai.TypeObject {
		t.Errorf("item type = %v; want object", item.Type)
	}
	if item.Properties["text"].Description != "verbatim quote" {
		t.Errorf("description not carried: %+v", item.Properties["text"])
	}
	if len(item.Required) != 1 || item.Required[0] != "text" {
		t.Errorf("required = %v", item.Required)
	}
	if got.Properties["count"].Type != genai.TypeInteger {
		t.Errorf("count type = %v; want integer", got.Properties["count"].Type)
	}
	if convSchema(nil) != nil {
		t.Error("convSchema(nil) != nil")
	}
}
