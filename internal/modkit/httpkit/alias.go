// Package httpkit aliases the platform http surface so modules do not import
// internal/platform/net/http directly
package httpkit

import (
	"context"

	phttp "chime/internal/platform/net/http"
)

type (
	// Envelope is the transport envelope type
	Envelope = phttp.Envelope

	// Response is the HTTP response type
	Response = phttp.Response

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Router is the platform router seam
	Router = phttp.Router
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// OKTotal returns a 200 response carrying a collection total
func OKTotal(data any, total int64) Response { return phttp.OKTotal(data, total) }

// Created returns a 201 response
func Created(data any) Response { return phttp.Created(data) }

// NoContent returns a 204 response
func NoContent() Response { return phttp.NoContent() }

// Error maps an error onto status and envelope
func Error(err error) Response { return phttp.Error(err) }

// JSON adapts a typed request handler; the body is bound and validated first
func JSON[T any](fn func(ctx context.Context, req T) Response) Handler {
	return phttp.JSONHandler(fn)
}
