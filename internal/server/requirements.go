package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	costingdomain "github.com/smallbiznis/bakehouse/internal/costing/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
)

type requirementsRequest struct {
	Date  string `json:"date"`
	Lines []struct {
		ProductID snowflake.ID    `json:"product_id"`
		Quantity  decimal.Decimal `json:"quantity"`
		Unit      string          `json:"unit"`
	} `json:"lines"`
}

func (s *Server) ComputeRequirements(c *gin.Context) {
	var req requirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	date, err := parseDate(req.Date, time.Now().UTC())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	lines := make([]costingdomain.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		u, err := unit.Parse(line.Unit)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		lines = append(lines, costingdomain.LineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Unit:      u,
			Date:      date,
		})
	}

	resp, err := s.calculator.ComputeRequirements(c.Request.Context(), lines)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
