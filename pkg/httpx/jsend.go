// Package httpx provides HTTP utilities including JSend response formatting
package httpx

import (
	"encoding/json"
	"net/http"
)

// JSendSuccess represents a successful JSend response
type JSendSuccess struct {
	Data   any    `json:"data" swaggertype:"object"`
	Status string `json:"status" example:"success"`
}

// JSendFail represents a client error JSend response (validation errors, missing fields, etc.)
type JSendFail struct {
	Data   map[string]any `json:"data"`
	Status string         `json:"status" example:"fail"`
}

// JSendFailInvalidJSON represents an invalid JSON body error example
type JSendFailInvalidJSON struct {
	Status string                   `json:"status" example:"fail"`
	Data   JSendFailInvalidJSONData `json:"data"`
}

// JSendFailInvalidJSONData represents invalid JSON body error data
type JSendFailInvalidJSONData struct {
	Error string `json:"error" example:"Cuerpo de solicitud inválido"`
}

// JSendFailOrderIDInvalid represents an invalid order ID format error example
type JSendFailOrderIDInvalid struct {
	Status string                      `json:"status" example:"fail"`
	Data   JSendFailOrderIDInvalidData `json:"data"`
}

// JSendFailOrderIDInvalidData represents invalid order ID error data
type JSendFailOrderIDInvalidData struct {
	OrderID string `json:"order_id" example:"Formato de ID de orden inválido"`
}

// JSendFailPositionUnavailable represents a missing courier position error example
type JSendFailPositionUnavailable struct {
	Status string                           `json:"status" example:"fail"`
	Data   JSendFailPositionUnavailableData `json:"data"`
}

// JSendFailPositionUnavailableData represents missing courier position error data
type JSendFailPositionUnavailableData struct {
	Position string `json:"position" example:"No se ha reportado la ubicación del repartidor"`
}

// JSendFailTrackingNotFound represents a missing tracking error example
type JSendFailTrackingNotFound struct {
	Status string                        `json:"status" example:"fail"`
	Data   JSendFailTrackingNotFoundData `json:"data"`
}

// JSendFailTrackingNotFoundData represents missing tracking error data
type JSendFailTrackingNotFoundData struct {
	OrderID string `json:"order_id" example:"No hay seguimiento activo para esta orden"`
}

// JSendError represents a server error JSend response (database errors, external service failures, etc.)
type JSendError struct {
	Status  string `json:"status" example:"error"`
	Message string `json:"message" example:"Failed to connect to database"`
	Code    int    `json:"code,omitempty" example:"500"`
}

// RespondSuccess sends a JSend success response
func RespondSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(JSendSuccess{
		Status: "success",
		Data:   data,
	}); err != nil {
		// Log encoding error but don't try to write another response as headers are already sent
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RespondFail sends a JSend fail response (client errors)
func RespondFail(w http.ResponseWriter, statusCode int, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(JSendFail{
		Status: "fail",
		Data:   data,
	}); err != nil {
		// Log encoding error but don't try to write another response as headers are already sent
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// RespondError sends a JSend error response (server errors)
func RespondError(w http.ResponseWriter, statusCode int, message string, code ...int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResp := JSendError{
		Status:  "error",
		Message: message,
	}

	if len(code) > 0 {
		errResp.Code = code[0]
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		// Log encoding error but don't try to write another response as headers are already sent
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// DecodeJSON decodes JSON from request body into the provided struct
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
