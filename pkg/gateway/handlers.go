package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/respond"
	"ConfigService/pkg/store"
)

// Handler serves the configuration routes. It expects the auth gate to
// have run: the caller identity comes from the request context.
type Handler struct {
	Store store.Store
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// ConfigRequest is the body of create and update requests.
type ConfigRequest struct {
	Data json.RawMessage `json:"data"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	cfgs, err := h.Store.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch configurations")
		return
	}
	respond.JSON(w, http.StatusOK, cfgs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	cfg, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch configuration")
		return
	}
	respond.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	data, ok := decodeConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Store.Create(r.Context(), userID, data)
	if err != nil {
		h.fail(w, r, err, "Failed to create configuration")
		return
	}
	respond.JSON(w, http.StatusCreated, cfg)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	data, ok := decodeConfig(w, r)
	if !ok {
		return
	}
	cfg, err := h.Store.Update(r.Context(), chi.URLParam(r, "id"), userID, data)
	if err != nil {
		h.fail(w, r, err, "Failed to update configuration")
		return
	}
	respond.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID := mustUser(r)
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.fail(w, r, err, "Failed to delete configuration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Configuration not found")
	case errors.Is(err, store.ErrConflict):
		respond.Error(w, http.StatusConflict, "Configuration was modified concurrently")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg(message)
		respond.Error(w, http.StatusInternalServerError, message)
	}
}

// decodeConfig reads and validates {"data": ...}. On failure the 400 has
// been written and ok is false.
func decodeConfig(w http.ResponseWriter, r *http.Request) (cfg homescreen.Config, ok bool) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Request body must be a JSON object")
		return cfg, false
	}
	if len(req.Data) == 0 || string(req.Data) == "null" {
		respond.Error(w, http.StatusBadRequest, "Configuration data is required in request body")
		return cfg, false
	}
	cfg, err := homescreen.Decode(req.Data)
	if err != nil {
		var verr *homescreen.ValidationError
		if errors.As(err, &verr) {
			respond.ErrorTitle(w, http.StatusBadRequest, "Validation Error", verr.Message)
			return cfg, false
		}
		respond.Error(w, http.StatusBadRequest, err.Error())
		return cfg, false
	}
	return cfg, true
}

// mustUser returns the identity set by the auth gate. Routes are only
// reachable through the gate, so a missing identity is a wiring bug.
func mustUser(r *http.Request) string {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		panic("gateway: configuration route reached without an authenticated caller")
	}
	return userID
}
