package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/services"
)

// ProfileHandler handles HTTP requests for voter profiles and friendships.
type ProfileHandler struct {
	profileService services.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(ps services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: ps}
}

// CreateProfilePayload defines the expected JSON body for creating a profile.
type CreateProfilePayload struct {
	Name               string           `json:"name"`
	State              string           `json:"state"`
	PreferredCandidate models.Candidate `json:"preferredCandidate"`
	Reason             string           `json:"reason"`
	Active             bool             `json:"active"`
	AllowRandom        bool             `json:"allowRandom"`
}

// CreateProfileHandler handles POST /api/v1/profiles
func (h *ProfileHandler) CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateProfilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	profile := &models.Profile{
		Name:               payload.Name,
		State:              payload.State,
		PreferredCandidate: payload.PreferredCandidate,
		Reason:             payload.Reason,
		Active:             payload.Active,
		AllowRandom:        payload.AllowRandom,
	}
	if profile.PreferredCandidate == "" {
		profile.PreferredCandidate = models.CandidateNone
	}

	if err := h.profileService.CreateProfile(r.Context(), profile); err != nil {
		if errors.Is(err, services.ErrInvalidCandidate) || errors.Is(err, services.ErrStateNotFound) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error creating profile: %v", err)
			writeJSONError(w, "创建档案失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, profile)
}

// GetProfileHandler handles GET /api/v1/profiles/{profileID}
func (h *ProfileHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	profile, err := h.profileService.GetProfile(r.Context(), profileID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching profile %d: %v", profileID, err)
			writeJSONError(w, "获取档案失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// UpdateProfileHandler handles PUT /api/v1/profiles/{profileID}
func (h *ProfileHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	var update services.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	profile, err := h.profileService.UpdateProfile(r.Context(), profileID, update)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProfileNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrInvalidCandidate), errors.Is(err, services.ErrStateNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Error updating profile %d: %v", profileID, err)
			writeJSONError(w, "更新档案失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// ListFriendsHandler handles GET /api/v1/profiles/{profileID}/friends
func (h *ProfileHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	friends, err := h.profileService.ListFriends(r.Context(), profileID)
	if err != nil {
		log.Printf("Error listing friends for profile %d: %v", profileID, err)
		writeJSONError(w, "获取好友列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// AddFriendPayload defines the expected JSON body for recording a friendship.
type AddFriendPayload struct {
	FriendProfileID uint `json:"friendProfileId"`
}

// AddFriendHandler handles POST /api/v1/profiles/{profileID}/friends.
// This is the boundary where the external social-graph import feeds edges in.
func (h *ProfileHandler) AddFriendHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	var payload AddFriendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.FriendProfileID == 0 {
		writeJSONError(w, "缺少好友档案ID (friendProfileId)", http.StatusBadRequest)
		return
	}

	err := h.profileService.AddFriendship(r.Context(), profileID, payload.FriendProfileID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfFriendship), errors.Is(err, services.ErrProfileNotFound):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrFriendshipExists):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error adding friendship %d -> %d: %v", profileID, payload.FriendProfileID, err)
			writeJSONError(w, "创建好友关系失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "好友关系已创建"})
}
