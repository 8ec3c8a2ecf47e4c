package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bakehouse/internal/price/domain"
	"github.com/smallbiznis/bakehouse/internal/unit"
)

type createPriceRequest struct {
	ProductID snowflake.ID    `json:"product_id"`
	Unit      string          `json:"unit"`
	Amount    decimal.Decimal `json:"amount"`
	ValidFrom string          `json:"valid_from"`
	ValidTo   string          `json:"valid_to"`
	CloseOpen bool            `json:"close_open"`
}

func (s *Server) CreatePrice(c *gin.Context) {
	var req createPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	validFrom, err := parseOptionalTime(req.ValidFrom, false)
	if err != nil || validFrom == nil {
		AbortWithError(c, newValidationError("valid_from", "invalid_valid_from", "invalid valid_from"))
		return
	}
	validTo, err := parseOptionalTime(req.ValidTo, false)
	if err != nil {
		AbortWithError(c, newValidationError("valid_to", "invalid_valid_to", "invalid valid_to"))
		return
	}

	resp, err := s.priceSvc.Create(c.Request.Context(), pricedomain.CreateRequest{
		ProductID: req.ProductID,
		Unit:      strings.TrimSpace(req.Unit),
		Amount:    req.Amount,
		ValidFrom: *validFrom,
		ValidTo:   validTo,
		CloseOpen: req.CloseOpen,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPriceHistory(c *gin.Context) {
	productID, u, ok := productUnitParams(c)
	if !ok {
		return
	}

	resp, err := s.priceSvc.History(c.Request.Context(), productID, u)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ValidatePriceWindows(c *gin.Context) {
	productID, u, ok := productUnitParams(c)
	if !ok {
		return
	}

	resp, err := s.priceSvc.ValidateWindows(c.Request.Context(), productID, u)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolvePrice(c *gin.Context) {
	var query struct {
		ProductID string `form:"product_id"`
		Unit      string `form:"unit"`
		Date      string `form:"date"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	productID, err := parseSnowflakeID(query.ProductID)
	if err != nil {
		AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid product_id"))
		return
	}
	u, err := unit.Parse(query.Unit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	asOf, err := parseDate(query.Date, time.Now().UTC())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	resp, err := s.priceSvc.ResolvePrice(c.Request.Context(), productID, u, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type lineAmountsRequest struct {
	ProductID snowflake.ID    `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Date      string          `json:"date"`
}

func (s *Server) ComputeLineAmounts(c *gin.Context) {
	var req lineAmountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	u, err := unit.Parse(req.Unit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate(req.Date, time.Now().UTC())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	resp, err := s.priceSvc.ComputeLineAmounts(c.Request.Context(), req.ProductID, req.Quantity, u, date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func productUnitParams(c *gin.Context) (snowflake.ID, unit.Unit, bool) {
	productID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, "", false
	}
	u, err := unit.Parse(c.Query("unit"))
	if err != nil {
		AbortWithError(c, err)
		return 0, "", false
	}
	return productID, u.Canonical(), true
}
