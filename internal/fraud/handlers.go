package fraud

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solution25com/fraudshield/internal/minfraud"
	"github.com/solution25com/fraudshield/internal/order"
)

// Handler provides HTTP endpoints for fraud operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new fraud handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up fraud routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders/:id/evaluate", h.EvaluateOrder)
	r.GET("/orders/:id/fraud", h.GetOrderFraud)
	r.GET("/fraud/overall-risk", h.GetOverallRisk)
	r.POST("/fraud/credentials/verify", h.VerifyCredentials)
}

// EvaluateOrder handles POST /v1/orders/:id/evaluate
func (h *Handler) EvaluateOrder(c *gin.Context) {
	id := c.Param("id")

	eval, err := h.service.Evaluate(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			status = http.StatusNotFound
			code = "not_found"
		case errors.Is(err, ErrMissingCredentials):
			status = http.StatusUnprocessableEntity
			code = "credentials_missing"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"evaluation": eval})
}

// GetOrderFraud handles GET /v1/orders/:id/fraud
func (h *Handler) GetOrderFraud(c *gin.Context) {
	id := c.Param("id")

	md, state, err := h.service.OrderFraud(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No order with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	resp := gin.H{"order_id": id, "scored": md != nil}
	if md != nil {
		resp["metadata"] = md
	}
	if state != nil {
		resp["state"] = state.TechnicalName
	}
	c.JSON(http.StatusOK, resp)
}

// GetOverallRisk handles GET /v1/fraud/overall-risk
func (h *Handler) GetOverallRisk(c *gin.Context) {
	score, err := h.service.OverallRiskScore(c.Request.Context(), c.Query("channel"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"overall_risk_score": score})
}

// VerifyCredentials handles POST /v1/fraud/credentials/verify
func (h *Handler) VerifyCredentials(c *gin.Context) {
	var body struct {
		ChannelID  string `json:"channelId"`
		AccountID  string `json:"accountId"`
		LicenseKey string `json:"licenseKey"`
	}
	_ = c.ShouldBindJSON(&body)

	err := h.service.VerifyCredentials(c.Request.Context(), body.ChannelID, body.AccountID, body.LicenseKey)
	if err != nil {
		status := http.StatusBadGateway
		code := "provider_error"
		switch {
		case errors.Is(err, ErrMissingCredentials):
			status = http.StatusUnprocessableEntity
			code = "credentials_missing"
		case errors.Is(err, minfraud.ErrAuthentication):
			status = http.StatusUnauthorized
			code = "credentials_invalid"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error(), "valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "message": "credentials verified"})
}
