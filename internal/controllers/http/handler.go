package http

import (
	"errors"
	"io"
	"net/http"

	"checkout-service/internal/checkout"
	"checkout-service/internal/domain"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/infra/redisstore"
	"checkout-service/internal/logger"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

const supportMessage = "something went wrong, please contact support with your order code"

type Handler struct {
	checkout   *services.CheckoutService
	orders     *services.OrderService
	payments   *services.ReconciliationService
	webhooks   gateway.Gateway
	adminToken string
	log        *zap.Logger
}

func NewHandler(c *services.CheckoutService, o *services.OrderService, p *services.ReconciliationService, gw gateway.Gateway, adminToken string, log *zap.Logger) *Handler {
	return &Handler{checkout: c, orders: o, payments: p, webhooks: gw, adminToken: adminToken, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	sessions := r.Group("/checkout/sessions")
	sessions.POST("", h.StartCheckout)
	sessions.GET("/:id", h.GetCheckout)
	sessions.DELETE("/:id", h.AbandonCheckout)
	sessions.POST("/:id/cart", h.ConfirmCart)
	sessions.POST("/:id/payment", h.ChoosePayment)
	sessions.POST("/:id/customer", h.SubmitCustomer)
	sessions.POST("/:id/fulfillment", h.ChooseFulfillment)
	sessions.POST("/:id/confirm", h.ConfirmCheckout)
	sessions.POST("/:id/back", h.Back)
	sessions.POST("/:id/await", h.AwaitPayment)

	orders := r.Group("/orders/:code")
	orders.GET("", h.GetOrder)
	orders.GET("/payments", h.ListPayments)
	orders.POST("/payments", h.PayOutstanding)
	orders.POST("/sync", h.SyncOrder)
	orders.POST("/cancel", h.CancelOrder)

	r.POST("/webhooks/payment", h.PaymentWebhook)

	admin := r.Group("/admin", h.requireAdmin)
	admin.PATCH("/orders/:code/status", h.UpdateOrderStatus)
}

func (h *Handler) StartCheckout(c *gin.Context) {
	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.checkout.Start(c.Request.Context(), req.Cart)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetCheckout(c *gin.Context) {
	view, err := h.checkout.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) AbandonCheckout(c *gin.Context) {
	if err := h.checkout.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ConfirmCart(c *gin.Context) {
	h.respondView(c)(h.checkout.ConfirmCart(c.Request.Context(), c.Param("id")))
}

func (h *Handler) ChoosePayment(c *gin.Context) {
	var req ChoosePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.respondView(c)(h.checkout.ChoosePayment(c.Request.Context(), c.Param("id"), req.PaymentMethod, req.InstallmentMonths, req.InstallmentChannel))
}

func (h *Handler) SubmitCustomer(c *gin.Context) {
	var req domain.CustomerInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.respondView(c)(h.checkout.SubmitCustomer(c.Request.Context(), c.Param("id"), req))
}

func (h *Handler) ChooseFulfillment(c *gin.Context) {
	var req checkout.Fulfillment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.respondView(c)(h.checkout.ChooseFulfillment(c.Request.Context(), c.Param("id"), req))
}

func (h *Handler) ConfirmCheckout(c *gin.Context) {
	h.respondView(c)(h.checkout.Confirm(c.Request.Context(), c.Param("id")))
}

func (h *Handler) Back(c *gin.Context) {
	h.respondView(c)(h.checkout.Back(c.Request.Context(), c.Param("id")))
}

func (h *Handler) AwaitPayment(c *gin.Context) {
	h.respondView(c)(h.checkout.Await(c.Request.Context(), c.Param("id")))
}

func (h *Handler) respondView(c *gin.Context) func(*services.CheckoutView, error) {
	return func(view *services.CheckoutView, err error) {
		if err != nil {
			code := ""
			if needsSupport(err, statusFor(err)) {
				if st, loadErr := h.checkout.Get(c.Request.Context(), c.Param("id")); loadErr == nil {
					code = st.Session.OrderCode
				}
			}
			h.writeError(c, err, code)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.LookupOrder(c.Request.Context(), c.Param("code"), c.Query("phone"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) ListPayments(c *gin.Context) {
	txns, err := h.payments.ListPayments(c.Request.Context(), c.Param("code"), c.Query("phone"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, txns)
}

// PayOutstanding opens a payment intent for whatever the order still owes,
// usually the balance after a deposit.
func (h *Handler) PayOutstanding(c *gin.Context) {
	intent, err := h.payments.CreateIntentFor(c.Request.Context(), c.Param("code"), c.Query("phone"))
	if err != nil {
		h.writeError(c, err, c.Param("code"))
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (h *Handler) SyncOrder(c *gin.Context) {
	order, err := h.payments.SyncFor(c.Request.Context(), c.Param("code"), c.Query("phone"))
	if err != nil {
		h.writeError(c, err, c.Param("code"))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.payments.Cancel(c.Request.Context(), c.Param("code"), c.Query("phone"))
	if err != nil {
		h.writeError(c, err, c.Param("code"))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *Handler) PaymentWebhook(c *gin.Context) {
	log := logger.FromGin(c, h.log)

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		return
	}

	n, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, gateway.ErrIgnoredEvent):
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		log.Warn("webhook rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid webhook"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), n); err != nil {
		h.writeError(c, err, n.OrderCode)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status", Field: "status"})
		return
	}

	order, err := h.payments.UpdateOrderStatus(c.Request.Context(), c.Param("code"), status)
	if err != nil {
		h.writeError(c, err, c.Param("code"))
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) requireAdmin(c *gin.Context) {
	if h.adminToken == "" || c.GetHeader("X-Admin-Token") != h.adminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handler) writeError(c *gin.Context, err error, orderCode string) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: ve.Message, Field: ve.Field})
		return
	}

	status := statusFor(err)
	if needsSupport(err, status) {
		logger.FromGin(c, h.log).Error("request failed",
			zap.String("order_code", orderCode),
			zap.Int("status", status),
			zap.Error(err),
		)
		c.JSON(status, ErrorResponse{Error: supportMessage, OrderCode: orderCode})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), OrderCode: orderCode})
}

// needsSupport reports whether err is one the customer cannot act on. Those
// are logged and answered with the support message instead of the error text.
func needsSupport(err error, status int) bool {
	return status >= http.StatusInternalServerError ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrIllegalStatusTransition)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, redisstore.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMultiItemNotSupported),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTerm):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrStepOutOfOrder),
		errors.Is(err, checkout.ErrCannotGoBack),
		errors.Is(err, redisstore.ErrSessionBusy),
		errors.Is(err, domain.ErrIllegalStatusTransition),
		errors.Is(err, domain.ErrCancellationWindowClosed),
		errors.Is(err, domain.ErrNoPendingPayment),
		errors.Is(err, services.ErrStatusConflict),
		errors.Is(err, services.ErrTrancheOutOfOrder),
		errors.Is(err, services.ErrNotAwaitingPayment):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
