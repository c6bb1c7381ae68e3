package apiserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/sbuss/voteswap/internal/services"
)

// MatchHandler handles HTTP requests for match resolution.
type MatchHandler struct {
	matchService services.MatchService
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// GetMatchesHandler handles GET /api/v1/profiles/{profileID}/matches.
//
// Query parameters: direct, foaf, excludePending — pass "false" to disable a
// tier or the pending-proposal exclusion. The response is the full
// MatchResult; callers must branch on noMatchNecessary before rendering the
// (possibly empty) matches list.
func (h *MatchHandler) GetMatchesHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	opts := services.DefaultMatchOptions()
	q := r.URL.Query()
	if q.Get("direct") == "false" {
		opts.Direct = false
	}
	if q.Get("foaf") == "false" {
		opts.FOAF = false
	}
	if q.Get("excludePending") == "false" {
		opts.ExcludePending = false
	}

	if opts == services.DefaultMatchOptions() {
		result, err := h.matchService.GetFriendMatches(r.Context(), profileID)
		if err != nil {
			h.writeMatchError(w, profileID, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, result)
		return
	}

	// Explicit tier selection skips the no-match-necessary dispatch.
	matches, err := h.matchService.FindMatches(r.Context(), profileID, opts)
	if err != nil {
		h.writeMatchError(w, profileID, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, matches)
}

func (h *MatchHandler) writeMatchError(w http.ResponseWriter, profileID uint, err error) {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrStateNotFound):
		// Data inconsistency between the profile and the almanac; this is a
		// server-side problem, not a bad request.
		log.Printf("Almanac inconsistency resolving matches for profile %d: %v", profileID, err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	default:
		log.Printf("Error resolving matches for profile %d: %v", profileID, err)
		writeJSONError(w, "匹配查询失败", http.StatusInternalServerError)
	}
}
