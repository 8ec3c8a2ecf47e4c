package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	reconciliationdomain "github.com/smallbiznis/bakehouse/internal/reconciliation/domain"
)

type reconcileRequest struct {
	OrderIDs []snowflake.ID `json:"order_ids"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Statuses []string       `json:"statuses"`
	Limit    int            `json:"limit"`
}

func (s *Server) ReconcilePrices(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	from, err := parseOptionalTime(req.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(req.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	if req.Limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	statuses := make([]orderdomain.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := orderdomain.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !ok {
			AbortWithError(c, orderdomain.ErrInvalidStatus)
			return
		}
		statuses = append(statuses, status)
	}

	summary, err := s.reconciliation.ReconcilePrices(c.Request.Context(), reconciliationdomain.Filter{
		OrderIDs: req.OrderIDs,
		From:     from,
		To:       to,
		Statuses: statuses,
		Limit:    req.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
