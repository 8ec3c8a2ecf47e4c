package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/bakehouse/internal/product/domain"
)

type createProductRequest struct {
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	SalesUnit        string           `json:"sales_unit"`
	FallbackUnitCost *decimal.Decimal `json:"fallback_unit_cost"`
	Metadata         map[string]any   `json:"metadata"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fallback := decimal.Zero
	if req.FallbackUnitCost != nil {
		fallback = *req.FallbackUnitCost
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		Code:             strings.TrimSpace(req.Code),
		Name:             strings.TrimSpace(req.Name),
		SalesUnit:        strings.TrimSpace(req.SalesUnit),
		FallbackUnitCost: fallback,
		Metadata:         req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
