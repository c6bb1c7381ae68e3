package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/services"
	"github.com/sbuss/voteswap/internal/storage/storagetest"
)

type testEnv struct {
	router      *mux.Router
	profiles    *storagetest.ProfileRepository
	friendships *storagetest.FriendshipRepository
	states      *storagetest.StateRepository
	proposals   *storagetest.ProposalRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	profiles := storagetest.NewProfileRepository()
	friendships := storagetest.NewFriendshipRepository()
	states := storagetest.NewStateRepository()
	proposals := storagetest.NewProposalRepository(profiles)

	updated := time.Date(2016, 10, 1, 0, 0, 0, 0, time.UTC)
	states.Seed(models.State{Name: "Florida", Updated: updated, TippingPointRank: 1, SafeRank: models.RankNone})
	states.Seed(models.State{Name: "California", Updated: updated, TippingPointRank: models.RankNone, SafeFor: models.CandidateClinton, SafeRank: 1})

	almanacService := services.NewAlmanacService(states)
	profileService := services.NewProfileService(profiles, friendships, almanacService)
	matchService := services.NewMatchService(profiles, friendships, proposals, almanacService)
	pairingService := services.NewPairingService(profiles, proposals, nil, config.KafkaConfig{})

	profileHandler := NewProfileHandler(profileService)
	matchHandler := NewMatchHandler(matchService)
	proposalHandler := NewProposalHandler(pairingService)
	almanacHandler := NewAlmanacHandler(almanacService)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/profiles", profileHandler.CreateProfileHandler).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{profileID:[0-9]+}", profileHandler.GetProfileHandler).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profileID:[0-9]+}", profileHandler.UpdateProfileHandler).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{profileID:[0-9]+}/friends", profileHandler.ListFriendsHandler).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profileID:[0-9]+}/friends", profileHandler.AddFriendHandler).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{profileID:[0-9]+}/matches", matchHandler.GetMatchesHandler).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profileID:[0-9]+}/proposals", proposalHandler.ListProposalsHandler).Methods(http.MethodGet)
	api.HandleFunc("/proposals/{proposalID:[0-9]+}/confirm", proposalHandler.ConfirmProposalHandler).Methods(http.MethodPost)
	api.HandleFunc("/proposals/{proposalID:[0-9]+}/reject", proposalHandler.RejectProposalHandler).Methods(http.MethodPost)
	r.HandleFunc("/states/swing", almanacHandler.ListSwingStatesHandler).Methods(http.MethodGet)
	r.HandleFunc("/states/safe", almanacHandler.ListSafeStatesHandler).Methods(http.MethodGet)
	r.HandleFunc("/states/{name}", almanacHandler.GetStateHandler).Methods(http.MethodGet)

	return &testEnv{
		router:      r,
		profiles:    profiles,
		friendships: friendships,
		states:      states,
		proposals:   proposals,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decoding response body failed: %v (body: %s)", err, rec.Body.String())
	}
}

func TestProfileLifecycleOverHTTP(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/profiles", models.Profile{
		Name:               "alice",
		State:              "Florida",
		PreferredCandidate: models.CandidateJohnson,
		Active:             true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create profile status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Profile
	decodeBody(t, rec, &created)
	if created.ID == 0 {
		t.Fatal("created profile has no ID")
	}

	rec = e.do(t, http.MethodGet, "/api/v1/profiles/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get profile status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPut, "/api/v1/profiles/1", map[string]interface{}{"state": "California"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Profile
	decodeBody(t, rec, &updated)
	if updated.State != "California" {
		t.Errorf("updated state = %q", updated.State)
	}

	rec = e.do(t, http.MethodPut, "/api/v1/profiles/1", map[string]interface{}{"state": "Atlantis"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown state update status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/profiles/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status = %d, want 404", rec.Code)
	}
}

func TestFriendEndpoints(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.profiles.Seed(models.Profile{Name: "alice", State: "Florida", PreferredCandidate: models.CandidateJohnson, Active: true})
	bob := e.profiles.Seed(models.Profile{Name: "bob", State: "California", PreferredCandidate: models.CandidateClinton, Active: true})

	rec := e.do(t, http.MethodPost, "/api/v1/profiles/1/friends", map[string]uint{"friendProfileId": bob.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add friend status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/v1/profiles/1/friends", map[string]uint{"friendProfileId": bob.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate friend status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/profiles/2/friends", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list friends status = %d", rec.Code)
	}
	var friends []models.ProfileBasicInfo
	decodeBody(t, rec, &friends)
	if len(friends) != 1 || friends[0].ID != alice.ID {
		t.Errorf("friends of bob = %+v", friends)
	}
}

func TestGetMatchesEndpoint(t *testing.T) {
	e := setupTestEnv(t)
	voter := e.profiles.Seed(models.Profile{Name: "voter", State: "Florida", PreferredCandidate: models.CandidateJohnson, Active: true})
	friend := e.profiles.Seed(models.Profile{Name: "friend", State: "California", PreferredCandidate: models.CandidateClinton, Active: true})
	e.friendships.Befriend(voter.ID, friend.ID)

	rec := e.do(t, http.MethodGet, "/api/v1/profiles/1/matches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("matches status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.MatchResult
	decodeBody(t, rec, &result)
	if result.NoMatchNecessary {
		t.Fatal("third party swing voter should need a match")
	}
	if len(result.Matches) != 1 || result.Matches[0].Profile.ID != friend.ID {
		t.Errorf("matches = %+v", result.Matches)
	}

	// A major party voter in their swing state doesn't need to trade.
	swingClinton := e.profiles.Seed(models.Profile{Name: "happy", State: "Florida", PreferredCandidate: models.CandidateClinton, Active: true})
	rec = e.do(t, http.MethodGet, "/api/v1/profiles/3/matches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("matches status = %d for profile %d", rec.Code, swingClinton.ID)
	}
	var happy models.MatchResult
	decodeBody(t, rec, &happy)
	if !happy.NoMatchNecessary {
		t.Error("expected noMatchNecessary for a swing state major party voter")
	}

	// Tier toggles switch the response to a bare list.
	rec = e.do(t, http.MethodGet, "/api/v1/profiles/1/matches?foaf=false", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered matches status = %d", rec.Code)
	}
	var list []models.FriendMatch
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("direct-only matches = %+v", list)
	}
}

func TestProposalDecisionEndpoints(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.profiles.Seed(models.Profile{Name: "alice", State: "Florida", PreferredCandidate: models.CandidateJohnson, Active: true})
	bob := e.profiles.Seed(models.Profile{Name: "bob", State: "California", PreferredCandidate: models.CandidateClinton, Active: true})
	proposal := e.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: time.Now()})

	// The proposer may not decide their own proposal.
	rec := e.do(t, http.MethodPost, "/api/v1/proposals/1/confirm", DecideProposalPayload{ProfileID: alice.ID})
	if rec.Code != http.StatusForbidden {
		t.Errorf("proposer confirm status = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/proposals/1/confirm", DecideProposalPayload{ProfileID: bob.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
	var confirmed models.PairProposal
	decodeBody(t, rec, &confirmed)
	if confirmed.DateConfirmed == nil {
		t.Error("confirmed proposal is missing DateConfirmed")
	}

	// Deciding again conflicts.
	rec = e.do(t, http.MethodPost, "/api/v1/proposals/1/reject", DecideProposalPayload{ProfileID: bob.ID, Reason: "changed my mind"})
	if rec.Code != http.StatusConflict {
		t.Errorf("reject after confirm status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/proposals/99/confirm", DecideProposalPayload{ProfileID: bob.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown proposal status = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/profiles/1/proposals?status=confirmed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list proposals status = %d", rec.Code)
	}
	var listed []models.PairProposalWithProfiles
	decodeBody(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != proposal.ID {
		t.Errorf("listed proposals = %+v", listed)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/profiles/1/proposals?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", rec.Code)
	}
}

func TestAlmanacEndpoints(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, http.MethodGet, "/states/Florida", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get state status = %d", rec.Code)
	}
	var state models.State
	decodeBody(t, rec, &state)
	if state.Name != "Florida" || state.TippingPointRank != 1 {
		t.Errorf("state = %+v", state)
	}

	rec = e.do(t, http.MethodGet, "/states/Atlantis", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown state status = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/states/swing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("swing pool status = %d", rec.Code)
	}
	var swing []models.StateRank
	decodeBody(t, rec, &swing)
	if len(swing) != 1 || swing[0].Name != "Florida" {
		t.Errorf("swing pool = %+v", swing)
	}

	rec = e.do(t, http.MethodGet, "/states/safe", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("safe pool status = %d", rec.Code)
	}
	var safe []models.StateRank
	decodeBody(t, rec, &safe)
	if len(safe) != 1 || safe[0].Name != "California" {
		t.Errorf("safe pool = %+v", safe)
	}
}
