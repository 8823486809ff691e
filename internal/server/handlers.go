package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/glance/internal/formatter"
	"github.com/desertthunder/glance/internal/gateway"
	"github.com/desertthunder/glance/internal/models"
	"github.com/desertthunder/glance/internal/shared"
	"github.com/jonboulle/clockwork"
)

// MaxPayloadBytes bounds the size of an Update accepted over HTTP.
const MaxPayloadBytes = 1 << 20

// HeaderPrefix prefixes ingestion metadata headers.
const HeaderPrefix = "X-Glance-"

// API holds the REST handlers.
type API struct {
	ctrl    Controller
	ingress Ingress
	clock   clockwork.Clock
	logger  *log.Logger
}

// StateView renders the controller state for clients.
func (a *API) StateView() formatter.StateView {
	return a.render(a.ctrl.Snapshot())
}

// render must not call back into the controller's main loop: subscribers run on it.
func (a *API) render(state models.State) formatter.StateView {
	view := formatter.NewStateView(state, a.clock.Now())
	view.User = a.ctrl.CurrentUser()
	view.Enabled = a.ctrl.Enabled()
	view.PrivacyMode = a.ctrl.PrivacyMode()
	return view
}

// PushCards accepts a raw Update payload.
func (a *API) PushCards(w http.ResponseWriter, r *http.Request) {
	if !a.ctrl.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "card controller disabled")
		return
	}

	meta, err := gateway.MetaFromHeader(r.Header.Get, HeaderPrefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	accepted := a.ingress.HandleIncoming(r.Context(), payload, meta)
	a.ctrl.Flush()
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

// State returns the current state as JSON.
func (a *API) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.StateView())
}

// SwitchUser handles {"user_id": n}.
func (a *API) SwitchUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID *int `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == nil || *req.UserID < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: user_id must be a non-negative integer", shared.ErrInvalidArgument))
		return
	}

	a.ctrl.OnUserSwitch(*req.UserID)
	a.ctrl.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// SetPrivacy handles {"enabled": b}.
func (a *API) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: enabled is required", shared.ErrMissingArgument))
		return
	}

	a.ctrl.SetPrivacyMode(*req.Enabled)
	a.ctrl.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// ProducerChanged reports that the producer came and went.
func (a *API) ProducerChanged(w http.ResponseWriter, r *http.Request) {
	a.ctrl.OnProducerAvailabilityChanged()
	a.ctrl.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// TimeChanged reports a wall-clock change.
func (a *API) TimeChanged(w http.ResponseWriter, r *http.Request) {
	a.ctrl.OnTimeChanged()
	a.ctrl.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// Reload re-reads both slots from the store.
func (a *API) Reload(w http.ResponseWriter, r *http.Request) {
	a.ctrl.ReloadData()
	a.ctrl.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// Dump writes the controller's text dump.
func (a *API) Dump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := a.ctrl.Dump(w); err != nil {
		a.logger.Error("dump failed", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
