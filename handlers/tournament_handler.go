package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Dosada05/knockout-cup/services"
	"github.com/google/uuid"
)

// dateLayout is the wire format of tournament match days.
const dateLayout = "2006-01-02"

type TournamentHandler struct {
	bracketService services.BracketService
}

func NewTournamentHandler(bs services.BracketService) *TournamentHandler {
	return &TournamentHandler{bracketService: bs}
}

type createTournamentRequest struct {
	ID           *uuid.UUID `json:"id,omitempty"`
	Name         string     `json:"name"`
	Participants []string   `json:"participants"`
	Dates        []string   `json:"dates"`
	Seed         *uint64    `json:"seed,omitempty"`
}

func (req createTournamentRequest) toInput() (services.CreateTournamentInput, error) {
	dates := make([]time.Time, 0, len(req.Dates))
	for i, raw := range req.Dates {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return services.CreateTournamentInput{}, fmt.Errorf("dates[%d]: expected YYYY-MM-DD, got %q", i, raw)
		}
		dates = append(dates, d)
	}
	return services.CreateTournamentInput{
		ID:           req.ID,
		Name:         req.Name,
		Participants: req.Participants,
		Dates:        dates,
		Seed:         req.Seed,
	}, nil
}

func (h *TournamentHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/api/tournaments/%s/bracket", tournament.ID))
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.bracketService.ListTournaments(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.bracketService.GetBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) DeleteTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bracketService.DeleteTournament(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
