package httpkit

import (
	"context"
	"net/http"

	phttp "chime/internal/platform/net/http"
)

// GetFn mounts a body-less handler under GET
func GetFn(r Router, path string, fn func(r *http.Request) Response) {
	r.Get(path, phttp.Respond(fn))
}

// PostJSON mounts a typed JSON handler under POST
func PostJSON[T any](r Router, path string, fn func(ctx context.Context, req T) Response) {
	r.Post(path, phttp.JSONHandler(fn))
}

// PutJSON mounts a typed JSON handler under PUT
func PutJSON[T any](r Router, path string, fn func(ctx context.Context, req T) Response) {
	r.Put(path, phttp.JSONHandler(fn))
}

// DeleteFn mounts a body-less handler under DELETE
func DeleteFn(r Router, path string, fn func(r *http.Request) Response) {
	r.Delete(path, phttp.Respond(fn))
}
