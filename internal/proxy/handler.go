package proxy

import (
	"io"
	"net/http"

	"blockhost-portal/internal/common/auth"
	"blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/common/logger"
	"blockhost-portal/internal/common/metrics"
)

const maxRequestBody = 4 << 10

type Handler struct {
	service *Service
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
	}
}

// ServeHTTP authenticates before it reads the body, so a caller without valid
// credentials always gets 401 whatever they sent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	callerID, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.fail(w, r, "unknown", err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.fail(w, r, "unknown", errors.NewBadRequestError("Invalid request body", err.Error()))
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		h.fail(w, r, "unknown", err)
		return
	}

	resp, err := h.service.HandleCaller(r.Context(), callerID, req)
	if err != nil {
		h.fail(w, r, string(req.Action()), err)
		return
	}

	metrics.ProxyRequests.WithLabelValues(string(req.Action()), "ok").Inc()
	errors.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	metrics.ProxyRequests.WithLabelValues(action, string(errors.Normalize(err).Code)).Inc()
	h.errors.HandleHTTPError(w, r, err)
}
