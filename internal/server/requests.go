package server

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/smartdevs17/helmetgate/internal/models"
)

const (
	defaultPage  = 1
	defaultLimit = 10

	maxJSONBody = 1 << 20
)

// CreateLogRequest is the body of POST /logs
type CreateLogRequest struct {
	Image  *string `json:"image"`
	IsOpen *bool   `json:"isOpen" validate:"required"`
}

// ConfigRequest is the body of POST /config
type ConfigRequest struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url"`
}

// GateCommandRequest is the body of POST /api/hardware/gate
type GateCommandRequest struct {
	Action string `json:"action" validate:"required,oneof=open close"`
}

// decodeJSON reads a JSON body into dst and validates its tags
func (s *HTTPServer) decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return validationError("Request body is required", "")
		}
		return validationError("Invalid JSON body", err.Error())
	}

	if err := s.validate.Struct(dst); err != nil {
		return validationError("Invalid request body", describeValidation(err))
	}
	return nil
}

// describeValidation flattens validator errors into one readable line
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonFieldName(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonFieldName(field string) string {
	switch field {
	case "IsOpen":
		return "isOpen"
	case "WebhookURL":
		return "webhookUrl"
	case "Action":
		return "action"
	case "Image":
		return "image"
	}
	return field
}

// validateWebhookURL requires an absolute http or https URL
func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return validationError("Invalid request body", "webhookUrl is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validationError("Invalid request body", "webhookUrl must use http or https")
	}
	if u.Host == "" {
		return validationError("Invalid request body", "webhookUrl must include a host")
	}
	return nil
}

// parseLogFilter reads page and limit from the query string
func parseLogFilter(r *http.Request, maxLimit int) (models.LogFilter, error) {
	filter := models.LogFilter{Page: defaultPage, Limit: defaultLimit}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, validationError("Invalid query parameters", "page must be a positive integer")
		}
		filter.Page = page
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, validationError("Invalid query parameters", "limit must be a positive integer")
		}
		filter.Limit = limit
	}

	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	// (page-1)*limit must fit in an int
	if filter.Page-1 > math.MaxInt/filter.Limit {
		return filter, validationError("Invalid query parameters", "page is out of range")
	}

	return filter, nil
}
