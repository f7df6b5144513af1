package httpkit

import "net/http"

// MountUnder mounts a subrouter at prefix and applies per-module middlewares.
// An empty prefix mounts directly on r
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	if prefix == "" || prefix == "/" {
		if len(mw) > 0 {
			r.Group(func(sub Router) {
				sub.Use(mw...)
				mount(sub)
			})
			return
		}
		mount(r)
		return
	}
	r.Route(prefix, func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	})
}
