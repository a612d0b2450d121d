package handler

import (
	"net/http"
	"strconv"
)

// List handles GET /api/v1/links?page=&limit=&search=
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	search := r.URL.Query().Get("search")

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	links, count, err := h.service.ListLinks(r.Context(), page, limit, search)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data":  links,
		"total": count,
		"page":  page,
		"limit": limit,
	}, http.StatusOK)
}

// Dashboard handles GET /api/v1/dashboard?limit=
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	dashboard, err := h.service.GetDashboard(r.Context(), limit)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.log.Debug().Str("user", UserEmail(r.Context())).Msg("dashboard viewed")
	h.writeJSON(w, dashboard, http.StatusOK)
}
