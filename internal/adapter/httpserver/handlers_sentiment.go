package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
	apperrors "github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/errors"
)

// Client-facing validation messages.
const (
	msgMissingText    = "Missing required field: text"
	msgEmptyText      = "Review text cannot be empty"
	msgTextNotString  = "Review text must be a string"
	msgMissingReviews = "Missing required field: reviews"
	msgReviewsNotList = "Reviews must be a list"
	msgInvalidJSON    = "Request body must be valid JSON"
)

func (s *Server) registerSentimentRoutes(g *echo.Group) {
	g.POST("/analyze-sentiment", s.handleAnalyzeSentiment)
	g.POST("/batch-analyze", s.handleBatchAnalyze)
}

type predictionResponse struct {
	Sentiment  domain.Sentiment `json:"sentiment"`
	Confidence float64          `json:"confidence"`
	Scores     *domain.Scores   `json:"scores,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func newPredictionResponse(o domain.Outcome) predictionResponse {
	if o.Kind == domain.OutcomeFailed {
		msg := "inference failed"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		return predictionResponse{Sentiment: domain.Neutral, Confidence: 0, Error: msg}
	}
	scores := o.Prediction.Scores
	return predictionResponse{
		Sentiment:  o.Prediction.Sentiment,
		Confidence: o.Prediction.Confidence,
		Scores:     &scores,
	}
}

type analyzeResponse struct {
	Success      bool               `json:"success"`
	Data         predictionResponse `json:"data"`
	OriginalText string             `json:"original_text"`
}

type batchResultResponse struct {
	ID        any                `json:"id"`
	Sentiment predictionResponse `json:"sentiment"`
}

type batchResponse struct {
	Success bool                  `json:"success"`
	Count   int                   `json:"count"`
	Results []batchResultResponse `json:"results"`
}

func (s *Server) handleAnalyzeSentiment(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return err
	}

	fields, ok := asObject(body)
	if !ok {
		return HandleValidationError(c, msgMissingText)
	}
	rawText, ok := fields["text"]
	if !ok {
		return HandleValidationError(c, msgMissingText)
	}
	if isNull(rawText) {
		return HandleValidationError(c, msgEmptyText)
	}

	var text string
	if err := json.Unmarshal(rawText, &text); err != nil {
		return HandleValidationError(c, msgTextNotString)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return HandleValidationError(c, msgEmptyText)
	}

	outcome := s.sentiment.Predict(c.Request().Context(), trimmed)

	response := analyzeResponse{
		Success:      true,
		Data:         newPredictionResponse(outcome),
		OriginalText: text,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write analyze response: %w", err)
	}
	return nil
}

func (s *Server) handleBatchAnalyze(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return err
	}

	fields, ok := asObject(body)
	if !ok {
		return HandleValidationError(c, msgMissingReviews)
	}
	rawReviews, ok := fields["reviews"]
	if !ok {
		return HandleValidationError(c, msgMissingReviews)
	}

	var reviews []json.RawMessage
	if isNull(rawReviews) || json.Unmarshal(rawReviews, &reviews) != nil {
		return HandleValidationError(c, msgReviewsNotList)
	}

	results := s.sentiment.AnalyzeBatch(c.Request().Context(), parseReviewItems(reviews))

	response := batchResponse{
		Success: true,
		Count:   len(results),
		Results: make([]batchResultResponse, len(results)),
	}
	for i, r := range results {
		response.Results[i] = batchResultResponse{ID: r.ID, Sentiment: newPredictionResponse(r.Outcome)}
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write batch response: %w", err)
	}
	return nil
}

// parseReviewItems drops entries that are not objects or lack a string text. Blank text is
// left for the predictor to skip. IDs are kept as raw JSON so they echo back unchanged.
func parseReviewItems(reviews []json.RawMessage) []domain.ReviewItem {
	items := make([]domain.ReviewItem, 0, len(reviews))
	for _, raw := range reviews {
		fields, ok := asObject(raw)
		if !ok {
			continue
		}
		var text string
		if rawText, ok := fields["text"]; !ok || isNull(rawText) || json.Unmarshal(rawText, &text) != nil {
			continue
		}

		var id any
		if rawID, ok := fields["id"]; ok {
			id = rawID
		}
		items = append(items, domain.ReviewItem{ID: id, Text: text})
	}
	return items
}

// decodeBody reads one JSON value. An empty body decodes to nil. Oversized bodies keep echo's
// 413; anything unparsable is a validation error.
func decodeBody(c echo.Context) (json.RawMessage, error) {
	var body json.RawMessage
	err := json.NewDecoder(c.Request().Body).Decode(&body)
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, io.EOF):
		return nil, nil
	}
	if httpErr, ok := errors.AsType[*echo.HTTPError](err); ok {
		return nil, httpErr
	}
	return nil, apperrors.ValidationError(msgInvalidJSON).WithField("decode_error", err.Error())
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
