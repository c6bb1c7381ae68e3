package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/services"
)

// ProposalHandler handles HTTP requests for pair proposals.
type ProposalHandler struct {
	pairingService services.PairingService
}

// NewProposalHandler creates a new ProposalHandler.
func NewProposalHandler(ps services.PairingService) *ProposalHandler {
	return &ProposalHandler{pairingService: ps}
}

// ProposeSwapPayload defines the expected JSON body for proposing a swap.
type ProposeSwapPayload struct {
	FromProfileID uint `json:"fromProfileId"`
	ToProfileID   uint `json:"toProfileId"`
}

// ProposeSwapHandler handles POST /api/v1/proposals. Intake is asynchronous:
// a 202 means the proposal was accepted for processing, not yet persisted.
func (h *ProposalHandler) ProposeSwapHandler(w http.ResponseWriter, r *http.Request) {
	var payload ProposeSwapPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.FromProfileID == 0 || payload.ToProfileID == 0 {
		writeJSONError(w, "缺少提议双方的档案ID", http.StatusBadRequest)
		return
	}

	err := h.pairingService.ProposeSwap(r.Context(), payload.FromProfileID, payload.ToProfileID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfProposal),
			errors.Is(err, services.ErrProfileNotFound),
			errors.Is(err, services.ErrCounterpartyNotFound),
			errors.Is(err, services.ErrAlreadyPaired):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrProposalExists), errors.Is(err, services.ErrPairRejected):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Error proposing swap %d -> %d: %v", payload.FromProfileID, payload.ToProfileID, err)
			writeJSONError(w, "发起换票提议失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"message": "换票提议已提交处理"})
}

// DecideProposalPayload defines the body for confirm/reject actions. The
// acting profile must be the proposal's recipient.
type DecideProposalPayload struct {
	ProfileID uint `json:"profileId"`
	// Reason is only meaningful for rejections.
	Reason string `json:"reason,omitempty"`
}

// ConfirmProposalHandler handles POST /api/v1/proposals/{proposalID}/confirm
func (h *ProposalHandler) ConfirmProposalHandler(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := pathID(r, "proposalID")
	if !ok {
		writeJSONError(w, "无效的提议ID格式", http.StatusBadRequest)
		return
	}

	var payload DecideProposalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	proposal, err := h.pairingService.ConfirmProposal(r.Context(), payload.ProfileID, proposalID)
	if err != nil {
		h.writeDecisionError(w, proposalID, payload.ProfileID, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, proposal)
}

// RejectProposalHandler handles POST /api/v1/proposals/{proposalID}/reject
func (h *ProposalHandler) RejectProposalHandler(w http.ResponseWriter, r *http.Request) {
	proposalID, ok := pathID(r, "proposalID")
	if !ok {
		writeJSONError(w, "无效的提议ID格式", http.StatusBadRequest)
		return
	}

	var payload DecideProposalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	proposal, err := h.pairingService.RejectProposal(r.Context(), payload.ProfileID, proposalID, payload.Reason)
	if err != nil {
		h.writeDecisionError(w, proposalID, payload.ProfileID, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, proposal)
}

// ListProposalsHandler handles GET /api/v1/profiles/{profileID}/proposals.
// An optional status query parameter (pending/confirmed/rejected) filters the
// list.
func (h *ProposalHandler) ListProposalsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(r, "profileID")
	if !ok {
		writeJSONError(w, "无效的档案ID格式", http.StatusBadRequest)
		return
	}

	status := models.ProposalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ProposalStatusPending, models.ProposalStatusConfirmed, models.ProposalStatusRejected:
	default:
		writeJSONError(w, "无效的状态过滤条件", http.StatusBadRequest)
		return
	}

	proposals, err := h.pairingService.ListProposals(r.Context(), profileID, status)
	if err != nil {
		log.Printf("Error listing proposals for profile %d: %v", profileID, err)
		writeJSONError(w, "获取换票提议列表失败", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, proposals)
}

func (h *ProposalHandler) writeDecisionError(w http.ResponseWriter, proposalID, profileID uint, err error) {
	switch {
	case errors.Is(err, services.ErrProposalNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotProposalRecipient):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrProposalNotPending):
		// Lost race or repeated decision; the caller may refetch and retry.
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("Error deciding proposal %d by profile %d: %v", proposalID, profileID, err)
		writeJSONError(w, "处理换票提议失败", http.StatusInternalServerError)
	}
}
