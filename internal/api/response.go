package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Response is the JSON envelope for webhook endpoint replies.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func okResponse() Response {
	return Response{Status: "ok"}
}

func errorResponse(msg string) Response {
	return Response{Status: "error", Error: msg}
}

// Pre-marshaled fallback to avoid runtime JSON encoding failures
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(errorResponse("internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Failed to write JSON response", "error", writeErr)
	}
}
