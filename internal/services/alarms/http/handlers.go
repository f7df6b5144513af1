// Package http provides http transport for alarms
package http

import (
	"context"
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chime/internal/modkit/httpkit"
	"chime/internal/services/alarms/domain"
	svc "chime/internal/services/alarms/service"
)

// Register mounts alarm endpoints on the given router
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}

	httpkit.PostJSON[domain.CreateInput](r, "/", h.create)
	httpkit.GetFn(r, "/", h.list)
	httpkit.GetFn(r, "/count", h.count)
	httpkit.GetFn(r, "/{code_id}", h.get)
	r.Put("/{code_id}", withCodeID(httpkit.JSON(h.update)))
	httpkit.DeleteFn(r, "/{code_id}", h.cancel)
	httpkit.GetFn(r, "/{code_id}/description", h.description)
}

// withCodeID copies the path param onto the context so the typed JSON
// handler can reach it
func withCodeID(next httpkit.Handler) httpkit.Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx := context.WithValue(r.Context(), pathCodeIDKey{}, chi.URLParam(r, "code_id"))
		next(w, r.WithContext(ctx))
	}
}

type handlers struct{ svc svc.Service }

// pathCodeID is stashed on the context by the update wrapper since typed
// JSON handlers do not see the request
type pathCodeIDKey struct{}

// @Summary Create an alarm
// @Tags Alarms
// @Accept json
// @Produce json
// @Param payload body domain.CreateInput true "Alarm"
// @Success 201 {object} domain.Alarm
// @Router /alarms [post]
func (h *handlers) create(ctx context.Context, in domain.CreateInput) httpkit.Response {
	a, err := h.svc.Create(ctx, in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Created(a)
}

// @Summary List alarms
// @Tags Alarms
// @Produce json
// @Param email query string false "Filter by email"
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} domain.Alarm
// @Router /alarms [get]
func (h *handlers) list(r *stdhttp.Request) httpkit.Response {
	in := listInput(r)
	items, total, err := h.svc.List(r.Context(), in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OKTotal(items, total)
}

// @Summary Count alarms
// @Tags Alarms
// @Produce json
// @Param email query string false "Filter by email"
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]int64
// @Router /alarms/count [get]
func (h *handlers) count(r *stdhttp.Request) httpkit.Response {
	n, err := h.svc.Count(r.Context(), listInput(r))
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(map[string]int64{"count": n})
}

// @Summary Get one alarm
// @Tags Alarms
// @Produce json
// @Param code_id path string true "Alarm code"
// @Success 200 {object} domain.Alarm
// @Router /alarms/{code_id} [get]
func (h *handlers) get(r *stdhttp.Request) httpkit.Response {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "code_id"))
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(a)
}

// @Summary Update an alarm
// @Tags Alarms
// @Accept json
// @Produce json
// @Param code_id path string true "Alarm code"
// @Param payload body domain.UpdateInput true "Patch"
// @Success 200 {object} domain.Alarm
// @Router /alarms/{code_id} [put]
func (h *handlers) update(ctx context.Context, in domain.UpdateInput) httpkit.Response {
	codeID, _ := ctx.Value(pathCodeIDKey{}).(string)
	a, err := h.svc.Update(ctx, codeID, in)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(a)
}

// @Summary Cancel an alarm
// @Tags Alarms
// @Param code_id path string true "Alarm code"
// @Success 204
// @Router /alarms/{code_id} [delete]
func (h *handlers) cancel(r *stdhttp.Request) httpkit.Response {
	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "code_id")); err != nil {
		return httpkit.Error(err)
	}
	return httpkit.NoContent()
}

// @Summary Get the description for an alarm code
// @Tags Alarms
// @Produce json
// @Param code_id path string true "Alarm code"
// @Success 200 {object} domain.CodeDescription
// @Router /alarms/{code_id}/description [get]
func (h *handlers) description(r *stdhttp.Request) httpkit.Response {
	d, err := h.svc.Description(r.Context(), chi.URLParam(r, "code_id"))
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.OK(d)
}

func listInput(r *stdhttp.Request) domain.ListInput {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return domain.ListInput{
		Email:  q.Get("email"),
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	}
}
