package dentists

import (
	"encoding/json"
	"net/http"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

// Handler handles HTTP requests for dentist listings
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListDentists handles GET /dentists requests
func (h *Handler) ListDentists(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list dentists", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Error retrieving dentists",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Dentists retrieved successfully",
		"data":    list,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
