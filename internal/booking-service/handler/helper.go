package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"carpool/internal/booking-service/domain"
)

type errorResponse struct {
	Error          string `json:"error"`
	Field          string `json:"field,omitempty"`
	SeatsAvailable *int   `json:"seats_available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Validation
// errors name the offending field and capacity errors carry the
// remaining seat count, so clients can react to each differently.
func writeDomainError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error(), Field: vErr.Field})
		return
	}

	var cErr *domain.CapacityError
	if errors.As(err, &cErr) {
		available := cErr.Available
		writeJSON(w, http.StatusConflict, errorResponse{Error: cErr.Error(), SeatsAvailable: &available})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSeatConflict):
		writeError(w, http.StatusConflict, "seats changed while booking, please retry")
	case errors.Is(err, domain.ErrCapacity):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
