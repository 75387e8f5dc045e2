package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homytech-core/internal/device"
)

// controlRequest is the body of the device command endpoints. User names
// the operator shown in the logs; it defaults to the caller's account name.
type controlRequest struct {
	User   string `json:"user"`
	Action string `json:"action"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type commandResponse struct {
	Message string       `json:"message"`
	Event   device.Event `json:"event"`
}

// decodeControl reads a controlRequest and resolves the actor.
func (s *Server) decodeControl(w http.ResponseWriter, r *http.Request) (controlRequest, bool) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return req, false
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action is required")
		return req, false
	}
	if req.User == "" {
		if claims := claimsFrom(r.Context()); claims != nil {
			req.User = claims.Name
			if req.User == "" {
				req.User = claims.Email
			}
		}
	}
	if req.User == "" {
		req.User = device.ActorUnspecified
	}
	return req, true
}

// handleSetLight handles POST /light/{id}.
func (s *Server) handleSetLight(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "light id must be an integer")
		return
	}
	req, ok := s.decodeControl(w, r)
	if !ok {
		return
	}

	ev, err := s.control.SetLight(r.Context(), id, req.Action, req.User)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Message: fmt.Sprintf("light %d sent command %s", id, ev.Action),
		Event:   ev.InZone(s.loc),
	})
}

// handleSetDoor handles POST /door.
func (s *Server) handleSetDoor(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeControl(w, r)
	if !ok {
		return
	}

	ev, err := s.control.SetDoor(r.Context(), req.Action, req.User)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Message: "door sent command " + ev.Action,
		Event:   ev.InZone(s.loc),
	})
}

// handleSetClothesline handles POST /clothesline.
func (s *Server) handleSetClothesline(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeControl(w, r)
	if !ok {
		return
	}

	ev, err := s.control.SetClothesline(r.Context(), req.Action, req.User)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		Message: "clothesline sent command " + ev.Action,
		Event:   ev.InZone(s.loc),
	})
}

// handleSetClotheslineMode handles POST /clothesline/mode.
func (s *Server) handleSetClotheslineMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	mode, err := s.control.SetClotheslineMode(r.Context(), req.Mode)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "clothesline is in " + mode + " mode",
		"mode":    mode,
	})
}

// handleSyncState handles POST /sync-state.
func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	result, err := s.control.SyncState(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "state synchronised to devices via MQTT",
		"published": result.Published,
	})
}
