package handlers

import (
	"net/http"

	"github.com/Dosada05/knockout-cup/services"
)

type MatchHandler struct {
	bracketService services.BracketService
}

func NewMatchHandler(bs services.BracketService) *MatchHandler {
	return &MatchHandler{bracketService: bs}
}

// SubmitResult records a final score and advances the winner.
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tag, err := getTagFromURL(r, "tag")
	if err != nil {
		notFoundResponse(w, r)
		return
	}

	var input services.ResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.bracketService.SubmitResult(r.Context(), tournamentID, tag, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ClearResult(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tag, err := getTagFromURL(r, "tag")
	if err != nil {
		notFoundResponse(w, r)
		return
	}

	result, err := h.bracketService.ClearResult(r.Context(), tournamentID, tag)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Advance re-runs advancement for a slot whose score was written elsewhere.
// Retrying after a 503 is safe.
func (h *MatchHandler) Advance(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tag, err := getTagFromURL(r, "tag")
	if err != nil {
		notFoundResponse(w, r)
		return
	}

	result, err := h.bracketService.OnMatchCompleted(r.Context(), tournamentID, tag)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
