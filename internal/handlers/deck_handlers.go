package handlers

import (
	"net/http"

	"github.com/susumicapital/investor-portal/internal/domain"
)

// DeckSections returns the tracked deck sections in page order.
func (h *Handlers) DeckSections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sections": domain.SectionSlugs,
	})
}
