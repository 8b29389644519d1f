package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorClass is the shallow, UI-oriented failure taxonomy.
type ErrorClass string

const (
	ClassNetwork      ErrorClass = "network"
	ClassUnauthorized ErrorClass = "unauthorized"
	ClassNotFound     ErrorClass = "not_found"
	ClassServer       ErrorClass = "server"
	ClassUnknown      ErrorClass = "unknown"
)

// APIError is a non-2xx response from a backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// Classify maps any client error onto an ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return ClassUnauthorized
		case apiErr.StatusCode == http.StatusNotFound:
			return ClassNotFound
		case apiErr.StatusCode >= 500:
			return ClassServer
		}
		return ClassUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ClassNetwork
	}
	return ClassUnknown
}

// HTTPStatus is the status the portal answers with for a failed upstream call.
func HTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	switch Classify(err) {
	case ClassNetwork:
		return http.StatusBadGateway
	case ClassServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// UserMessage is the text shown to the user for a failed call.
func UserMessage(err error) string {
	switch Classify(err) {
	case ClassNetwork:
		return "Could not reach the server. Please check your connection and try again."
	case ClassUnauthorized:
		return "You are not allowed to perform this action. Please sign in again."
	case ClassNotFound:
		return "The requested resource was not found."
	case ClassServer:
		return "The server encountered an error. Please try again later."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "An unknown error occurred."
}
