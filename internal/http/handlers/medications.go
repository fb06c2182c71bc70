package handlers

import (
	"net/http"

	"github.com/hongminglow/medimate-be/internal/auth"
	"github.com/hongminglow/medimate-be/internal/http/respond"
)

// ListMedications serves GET /medications.
func (h *AuthHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	meds, err := h.svc.Medications(r.Context(), id, r.URL.Query().Get("patientId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "medications", meds)
}
