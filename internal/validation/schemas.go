// Package validation holds the JSON schemas for the structured query
// parameters and request bodies, validated with gojsonschema before any
// parsing into typed structs.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const contextSchema = `{
	"type": "object",
	"properties": {
		"current_item_id": {"type": "string", "format": "uuid"},
		"user_interests": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"maxItems": 50
		},
		"reading_history": {
			"type": "array",
			"items": {"type": "string", "format": "uuid"},
			"maxItems": 200
		},
		"time_of_day": {"type": "string", "enum": ["morning", "afternoon", "evening", "night"]},
		"device": {"type": "string", "enum": ["mobile", "tablet", "desktop"]}
	},
	"additionalProperties": false
}`

const filtersSchema = `{
	"type": "object",
	"properties": {
		"sections": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 20},
		"tags": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 50},
		"authors": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 20},
		"published_after": {"type": "string", "format": "date-time"},
		"published_before": {"type": "string", "format": "date-time"},
		"min_reading_time": {"type": "integer", "minimum": 0},
		"max_reading_time": {"type": "integer", "minimum": 0},
		"language": {"type": "string", "minLength": 2, "maxLength": 8},
		"exclude_read": {"type": "boolean"},
		"only_featured": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const feedbackSchema = `{
	"type": "object",
	"required": ["recommendation_id", "user_id", "item_id", "action"],
	"properties": {
		"recommendation_id": {"type": "string", "format": "uuid"},
		"user_id": {"type": "string", "format": "uuid"},
		"item_id": {"type": "string", "format": "uuid"},
		"action": {"type": "string", "enum": ["click", "like", "share", "save", "ignore", "dislike", "report"]},
		"rating": {"type": "integer", "minimum": 1, "maximum": 5},
		"comment": {"type": "string", "maxLength": 2000},
		"context": {"type": "object"}
	},
	"additionalProperties": false
}`

var (
	contextValidator  = gojsonschema.NewStringLoader(contextSchema)
	filtersValidator  = gojsonschema.NewStringLoader(filtersSchema)
	feedbackValidator = gojsonschema.NewStringLoader(feedbackSchema)
)

// ValidateContext checks the JSON-valued context query parameter.
func ValidateContext(document string) map[string]string {
	return validate(contextValidator, document)
}

// ValidateFilters checks the JSON-valued filters query parameter.
func ValidateFilters(document string) map[string]string {
	return validate(filtersValidator, document)
}

// ValidateFeedback checks a feedback request body.
func ValidateFeedback(document string) map[string]string {
	return validate(feedbackValidator, document)
}

// validate returns nil for a valid document, otherwise a field to message
// map suitable for a 400 response.
func validate(schema gojsonschema.JSONLoader, document string) map[string]string {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(document))
	if err != nil {
		return map[string]string{"_document": fmt.Sprintf("invalid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	errors := make(map[string]string, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		field := resultErr.Field()
		if field == "(root)" {
			field = "_document"
		}
		if _, exists := errors[field]; !exists {
			errors[field] = resultErr.Description()
		}
	}
	return errors
}
