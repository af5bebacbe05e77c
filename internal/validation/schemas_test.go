package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateContext(t *testing.T) {
	assert.Nil(t, ValidateContext(`{"device":"mobile","user_interests":["economy"]}`))
	assert.NotNil(t, ValidateContext(`{"device":"smartwatch"}`))
	assert.NotNil(t, ValidateContext(`{"unexpected":true}`))
	assert.NotNil(t, ValidateContext(`not json`))
}

func TestValidateFilters(t *testing.T) {
	assert.Nil(t, ValidateFilters(`{"sections":["sports"],"only_featured":true}`))
	assert.NotNil(t, ValidateFilters(`{"min_reading_time":-1}`))
	assert.NotNil(t, ValidateFilters(`{"sections":"sports"}`))
}

func TestValidateFeedback(t *testing.T) {
	valid := `{
		"recommendation_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"user_id": "7c9e6679-7425-40de-944b-e07fc1f90ae8",
		"item_id": "7c9e6679-7425-40de-944b-e07fc1f90ae9",
		"action": "like"
	}`
	assert.Nil(t, ValidateFeedback(valid))

	missingAction := `{
		"recommendation_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"user_id": "7c9e6679-7425-40de-944b-e07fc1f90ae8",
		"item_id": "7c9e6679-7425-40de-944b-e07fc1f90ae9"
	}`
	errs := ValidateFeedback(missingAction)
	assert.NotNil(t, errs)
}
