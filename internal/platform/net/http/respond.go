package http

import (
	"encoding/json"
	"net/http"

	perr "chime/internal/platform/errors"
	pnet "chime/internal/platform/net"
)

// Envelope is the uniform JSON body for every API response
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
	Total      *int64         `json:"total,omitempty"`
}

// Response is what handlers return; the transport writes it exactly once
type Response struct {
	status int
	data   any
	total  *int64
	err    error
}

// OK wraps data in a 200 response
func OK(data any) Response { return Response{status: http.StatusOK, data: data} }

// OKTotal wraps data plus a collection total in a 200 response
func OKTotal(data any, total int64) Response {
	return Response{status: http.StatusOK, data: data, total: &total}
}

// Created wraps data in a 201 response
func Created(data any) Response { return Response{status: http.StatusCreated, data: data} }

// NoContent is a bodyless 204 response
func NoContent() Response { return Response{status: http.StatusNoContent} }

// Error wraps err; the status and code come from the platform error taxonomy
func Error(err error) Response { return Response{err: err} }

// Write renders the response onto w
func (resp Response) Write(w http.ResponseWriter, r *http.Request) {
	if resp.err != nil {
		writeError(w, r, resp.err)
		return
	}
	if resp.status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, resp.status, Envelope{
		StatusCode: resp.status,
		Status:     http.StatusText(resp.status),
		RequestID:  pnet.RequestID(r.Context()),
		Data:       resp.data,
		Total:      resp.total,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	wire := perr.WireFrom(err)
	status := perr.HTTPStatus(err)
	writeJSON(w, status, Envelope{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       wire.Code,
		Error:      wire.Message,
		Field:      wire.Field,
		RequestID:  pnet.RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
