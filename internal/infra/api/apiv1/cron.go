package apiv1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ai-image-billing/internal/domain/model"
	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/api"
)

type sweepResponse struct {
	Success bool                        `json:"success"`
	Expired int                         `json:"expired"`
	Skipped bool                        `json:"skipped"`
	Counts  map[model.OrderStatus]int64 `json:"counts,omitempty"`
}

// expireOrders is called by an external scheduler with the cron secret as a
// bearer token. An empty configured secret disables the endpoint.
func (s *Server) expireOrders(w http.ResponseWriter, r *http.Request) {
	if !s.cronAuthorized(r) {
		api.WriteError(w, r, s.log, derror.New(derror.CodeUnauthorized, "invalid cron secret"))
		return
	}
	if s.deps.Sweeper == nil {
		api.WriteError(w, r, s.log, derror.New(derror.CodeInternal, "sweeper not configured"))
		return
	}

	rep, err := s.deps.Sweeper.RunOnce(r.Context())
	if err != nil {
		api.WriteError(w, r, s.log, err)
		return
	}
	resp := sweepResponse{Success: true, Expired: rep.Expired, Skipped: rep.Skipped}
	if rep.Stats != nil {
		resp.Counts = rep.Stats.CountByStatus
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) cronAuthorized(r *http.Request) bool {
	if s.deps.CronSecret == "" {
		return false
	}
	hdr := r.Header.Get("Authorization")
	if len(hdr) <= 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return false
	}
	got := strings.TrimSpace(hdr[7:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.CronSecret)) == 1
}
