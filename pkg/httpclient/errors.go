package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/promarket/pkg/errors"
)

// downstreamError accepts both error shapes seen from upstream services:
// the envelope {"error":{"code":..,"message":..}} and the flat {"error":"..."}.
type downstreamError struct {
	Code    string
	Message string
}

func (d *downstreamError) UnmarshalJSON(data []byte) error {
	var flat string
	if err := json.Unmarshal(data, &flat); err == nil {
		d.Message = flat
		return nil
	}
	var structured struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	d.Code = structured.Code
	d.Message = structured.Message
	return nil
}

type downstreamErrorBody struct {
	Error *downstreamError `json:"error"`
}

// ErrorMessage extracts the human-readable error message from an upstream
// error body. It returns "" when the body carries none.
func ErrorMessage(body []byte) string {
	var parsed downstreamErrorBody
	if json.Unmarshal(body, &parsed) != nil || parsed.Error == nil {
		return ""
	}
	return strings.TrimSpace(parsed.Error.Message)
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var parsed downstreamErrorBody
	if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != nil {
		return mapDownstreamError(resp.StatusCode, parsed.Error.Code, parsed.Error.Message, serviceName)
	}

	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
}

// mapDownstreamError translates a downstream service's HTTP status code and
// error code into an AppError that preserves the error semantics.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}
