package apiserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sbuss/voteswap/internal/services"
)

// AlmanacHandler handles public, read-only electoral almanac queries.
type AlmanacHandler struct {
	almanacService services.AlmanacService
}

// NewAlmanacHandler creates a new AlmanacHandler.
func NewAlmanacHandler(as services.AlmanacService) *AlmanacHandler {
	return &AlmanacHandler{almanacService: as}
}

// GetStateHandler handles GET /states/{name}
func (h *AlmanacHandler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		writeJSONError(w, "缺少州名", http.StatusBadRequest)
		return
	}

	state, err := h.almanacService.CurrentState(r.Context(), name)
	if err != nil {
		if errors.Is(err, services.ErrStateNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching almanac state %q: %v", name, err)
			writeJSONError(w, "查询年鉴失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, state)
}

// ListSwingStatesHandler handles GET /states/swing
func (h *AlmanacHandler) ListSwingStatesHandler(w http.ResponseWriter, r *http.Request) {
	pool, err := h.almanacService.SwingStatePool(r.Context())
	if err != nil {
		log.Printf("Error listing swing state pool: %v", err)
		writeJSONError(w, "查询年鉴失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, pool)
}

// ListSafeStatesHandler handles GET /states/safe
func (h *AlmanacHandler) ListSafeStatesHandler(w http.ResponseWriter, r *http.Request) {
	pool, err := h.almanacService.SafeStatePool(r.Context())
	if err != nil {
		log.Printf("Error listing safe state pool: %v", err)
		writeJSONError(w, "查询年鉴失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, pool)
}
