package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finci-square/cash-ap-exemplar/internal/afterpay"
	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

type errorBody struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("encode response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: errorBody{Message: msg}})
}

// writeDomainError maps domain errors onto HTTP statuses: validation → 400,
// not found → 404, unconfigured provider → 503, provider failure → 502,
// anything else → 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var apiErr *afterpay.APIError

	switch {
	case domain.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProviderNotConfigured):
		s.writeError(w, http.StatusServiceUnavailable,
			"Afterpay is not configured. Please set AFTERPAY_MERCHANT_ID and AFTERPAY_API_KEY environment variables.")
	case errors.As(err, &apiErr):
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrConsumerEmailRequired),
		errors.Is(err, domain.ErrCheckoutResultInvalid),
		errors.Is(err, domain.ErrPaymentTypeInvalid),
		errors.Is(err, domain.ErrLineQuantityInvalid),
		errors.Is(err, domain.ErrCartTransition),
		errors.Is(err, domain.ErrSessionRequired):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).Error("request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
