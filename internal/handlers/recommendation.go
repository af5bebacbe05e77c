package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sahafatech/tawsiya/internal/config"
	"github.com/sahafatech/tawsiya/internal/services"
	"github.com/sahafatech/tawsiya/internal/validation"
	"github.com/sahafatech/tawsiya/pkg/models"
)

var validTypes = map[string]bool{
	models.TypeArticles:       true,
	models.TypeSections:       true,
	models.TypeTags:           true,
	models.TypeAuthors:        true,
	models.TypeRelatedContent: true,
	models.TypeTrending:       true,
	models.TypePersonalized:   true,
	models.TypeCollaborative:  true,
	models.TypeHybrid:         true,
}

var validAlgorithms = map[string]bool{
	models.AlgorithmContentSimilarity: true,
	models.AlgorithmCollaborative:     true,
	models.AlgorithmTrending:          true,
	models.AlgorithmHybridEnsemble:    true,
}

// RecommendationHandler serves the read endpoint.
type RecommendationHandler struct {
	engine   services.RecommendationEngineInterface
	config   *config.EngineConfig
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewRecommendationHandler(
	engine services.RecommendationEngineInterface,
	cfg *config.EngineConfig,
	validate *validator.Validate,
	logger *logrus.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{engine: engine, config: cfg, validate: validate, logger: logger}
}

// Get handles GET /api/v1/recommendations.
func (h *RecommendationHandler) Get(c *gin.Context) {
	query, fieldErrors := h.parseQuery(c)
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, validationResponse(fieldErrors))
		return
	}

	if err := h.validate.Struct(query); err != nil {
		fields := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				fields[verr.Field()] = verr.Tag()
			}
		}
		c.JSON(http.StatusBadRequest, validationResponse(fields))
		return
	}

	response, err := h.engine.Recommend(c.Request.Context(), query)
	if err != nil {
		h.logger.WithError(err).Error("Recommendation pipeline failed")
		c.JSON(http.StatusInternalServerError,
			errorResponse("RECOMMENDATION_FAILED", "Unable to generate recommendations"))
		return
	}

	c.JSON(http.StatusOK, response)
}

// parseQuery reads every query parameter, applying the documented defaults.
// Structured parameters (context, filters) are schema-validated before
// decoding.
func (h *RecommendationHandler) parseQuery(c *gin.Context) (*models.RecommendationQuery, map[string]string) {
	fieldErrors := make(map[string]string)

	query := &models.RecommendationQuery{
		Type:              c.DefaultQuery("type", models.TypeArticles),
		Algorithm:         c.DefaultQuery("algorithm", models.AlgorithmHybridEnsemble),
		DiversityFactor:   h.config.DefaultDiversityFactor,
		FreshnessFactor:   h.config.DefaultFreshnessFactor,
		PersonalityFactor: h.config.DefaultPersonalityFactor,
		Limit:             10,
		Offset:            0,
	}

	if !validTypes[query.Type] {
		fieldErrors["type"] = "unknown recommendation type"
	}
	if !validAlgorithms[query.Algorithm] {
		fieldErrors["algorithm"] = "unknown algorithm"
	}

	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			fieldErrors["user_id"] = "must be a valid UUID"
		} else {
			query.UserID = &userID
		}
	}

	parseFactor := func(name string, target *float64) {
		raw := c.Query(name)
		if raw == "" {
			return
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			fieldErrors[name] = "must be a number between 0 and 1"
			return
		}
		*target = value
	}
	parseFactor("diversity_factor", &query.DiversityFactor)
	parseFactor("freshness_factor", &query.FreshnessFactor)
	parseFactor("personality_factor", &query.PersonalityFactor)

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			fieldErrors["limit"] = "must be an integer between 1 and 100"
		} else {
			query.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			fieldErrors["offset"] = "must be a non-negative integer"
		} else {
			query.Offset = offset
		}
	}
	if raw := c.Query("explainability"); raw != "" {
		explain, err := strconv.ParseBool(raw)
		if err != nil {
			fieldErrors["explainability"] = "must be a boolean"
		} else {
			query.Explainability = explain
		}
	}

	if raw := c.Query("context"); raw != "" {
		if errs := validation.ValidateContext(raw); errs != nil {
			for field, msg := range errs {
				fieldErrors["context."+field] = msg
			}
		} else if err := json.Unmarshal([]byte(raw), &query.Context); err != nil {
			fieldErrors["context"] = "must be a JSON object"
		}
	}
	if raw := c.Query("filters"); raw != "" {
		if errs := validation.ValidateFilters(raw); errs != nil {
			for field, msg := range errs {
				fieldErrors["filters."+field] = msg
			}
		} else if err := json.Unmarshal([]byte(raw), &query.Filters); err != nil {
			fieldErrors["filters"] = "must be a JSON object"
		}
	}

	if len(fieldErrors) == 0 {
		return query, nil
	}
	return query, fieldErrors
}

// FeedbackHandler serves the write endpoint.
type FeedbackHandler struct {
	feedback services.FeedbackRecorderInterface
	logger   *logrus.Logger
}

func NewFeedbackHandler(feedback services.FeedbackRecorderInterface, logger *logrus.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback, logger: logger}
}

// Post handles POST /api/v1/recommendations/feedback.
func (h *FeedbackHandler) Post(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_BODY", "Unable to read request body"))
		return
	}

	if errs := validation.ValidateFeedback(string(body)); errs != nil {
		c.JSON(http.StatusBadRequest, validationResponse(errs))
		return
	}

	var req models.FeedbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_BODY", "Body must be a JSON object"))
		return
	}

	feedback, err := h.feedback.Record(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record feedback")
		c.JSON(http.StatusInternalServerError,
			errorResponse("FEEDBACK_FAILED", "Unable to record feedback"))
		return
	}

	c.JSON(http.StatusCreated, models.FeedbackResponse{
		FeedbackID: feedback.ID,
		Recorded:   true,
	})
}
