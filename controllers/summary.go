package controllers

import (
	"context"
	"net/http"
	"time"

	"storefront-api/models"
	"storefront-api/services"
	"storefront-api/utils"
)

// SummaryBuilder computes the dashboard for a range and its comparison range.
type SummaryBuilder interface {
	Summary(ctx context.Context, cur, prev models.DateRange) (*models.Summary, error)
}

// SummaryController serves the admin dashboard
type SummaryController struct {
	Dashboard SummaryBuilder

	now func() time.Time
}

func NewSummaryController(dashboard SummaryBuilder) *SummaryController {
	return &SummaryController{Dashboard: dashboard, now: time.Now}
}

// GetSummary aggregates sales figures for startDate..endDate (YYYY-MM-DD, inclusive).
func (sc *SummaryController) GetSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cur, prev, err := services.ResolveRange(q.Get("startDate"), q.Get("endDate"), sc.now())
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	summary, err := sc.Dashboard.Summary(ctx, cur, prev)
	if err != nil {
		utils.RespondInternal(w, r, "Error building summary", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, "Dashboard summary", summary)
}
