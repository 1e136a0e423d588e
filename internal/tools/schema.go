package tools

import (
	"encoding/json"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func siteURLProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Site identifier: a URL-prefix property such as https://example.com/ or a domain property such as sc-domain:example.com.",
	}
}

func feedpathProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Full URL of the sitemap, e.g. https://example.com/sitemap.xml.",
	}
}

func enumSchema(description string, values []string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Description: description, Enum: enum}
}

func searchAnalyticsSchema() *jsonschema.Schema {
	minRows, maxRows := float64(1), float64(MaxRowLimit)
	minStart := float64(0)
	return objectSchema(map[string]*jsonschema.Schema{
		"siteUrl": siteURLProperty(),
		"startDate": {
			Type:        "string",
			Description: "Start date in YYYY-MM-DD format.",
		},
		"endDate": {
			Type:        "string",
			Description: "End date in YYYY-MM-DD format.",
		},
		"dimensions": {
			Type:        "string",
			Description: "Comma-separated list of dimensions to group by, in order. Allowed: query, page, country, device, searchAppearance.",
		},
		"type":            enumSchema("Search type to filter on.", SearchTypes),
		"aggregationType": enumSchema("How results are aggregated.", AggregationTypes),
		"rowLimit": {
			Type:        "integer",
			Description: "Maximum number of rows to return.",
			Minimum:     &minRows,
			Maximum:     &maxRows,
			Default:     json.RawMessage(strconv.FormatInt(DefaultRowLimit, 10)),
		},
		"startRow": {
			Type:        "integer",
			Description: "Zero-based index of the first row to return.",
			Minimum:     &minStart,
		},
		"dataState": enumSchema("Whether to include fresh, not yet finalized data.", DataStates),
	}, "siteUrl", "startDate", "endDate")
}
