package order

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solution25com/fraudshield/internal/idgen"
	"github.com/solution25com/fraudshield/internal/logging"
	"github.com/solution25com/fraudshield/internal/pagination"
	"github.com/solution25com/fraudshield/internal/statemachine"
	"github.com/solution25com/fraudshield/internal/validation"
)

// Field limits enforced on order intake.
const (
	maxOrderNumberLength = 64
	maxEmailLength       = 320
)

// StateInitializer places newly created orders into their initial workflow
// state so later fraud transitions have a starting point.
type StateInitializer interface {
	SetEntityState(ctx context.Context, entityType, entityID, technicalName string) error
}

// Handler provides HTTP endpoints for order intake and lookup.
type Handler struct {
	store  Store
	states StateInitializer // optional
}

// NewHandler creates a new order handler.
func NewHandler(store Store, states StateInitializer) *Handler {
	return &Handler{store: store, states: states}
}

// RegisterRoutes sets up order routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
}

// CreateOrder handles POST /v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var o Order
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid order payload",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("orderNumber", o.OrderNumber),
		validation.MaxLength("orderNumber", o.OrderNumber, maxOrderNumberLength),
		validation.MaxLength("customer.email", o.Customer.Email, maxEmailLength),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}
	o.OrderNumber = validation.SanitizeString(o.OrderNumber, maxOrderNumberLength)
	o.Customer.Email = validation.SanitizeString(o.Customer.Email, maxEmailLength)

	if o.ID == "" {
		o.ID = idgen.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	if err := h.store.Create(c.Request.Context(), &o); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if h.states != nil {
		if err := h.states.SetEntityState(c.Request.Context(), statemachine.EntityTypeOrder, o.ID, statemachine.StateOpen); err != nil {
			logging.L(c.Request.Context()).Warn("failed to set initial order state",
				"order_id", o.ID,
				"error", err,
			)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// GetOrder handles GET /v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
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

	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ListOrders handles GET /v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	var opts []ListOption
	if cur := c.Query("cursor"); cur != "" {
		opts = append(opts, WithCursor(cur))
	}

	// Fetch one extra row to detect whether another page exists
	orders, err := h.store.List(c.Request.Context(), limit+1, opts...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	page, next, more := pagination.ComputePage(orders, limit, func(o *Order) (time.Time, string) {
		return o.CreatedAt, o.ID
	})

	resp := gin.H{"orders": page, "count": len(page)}
	if more {
		resp["next_cursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}
