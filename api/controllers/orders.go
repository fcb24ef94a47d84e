package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anupamdas/zevar-backend/api/responses"
	"github.com/anupamdas/zevar-backend/api/validators"
	"github.com/anupamdas/zevar-backend/internal/checkout"
	internalorders "github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/internal/payments"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/logger"
	"github.com/anupamdas/zevar-backend/pkg/pagination"
	"github.com/anupamdas/zevar-backend/pkg/types"
)

type createOrderRequest struct {
	UserID          string         `json:"user_id" validate:"required,uuid"`
	PaymentMethod   string         `json:"payment_method"`
	ShippingAddress *types.Address `json:"shipping_address"`
}

type createOrderResponse struct {
	Order        any  `json:"order"`
	GatewayOrder any  `json:"razorpay_order,omitempty"`
	Replayed     bool `json:"replayed,omitempty"`
}

// CreateOrder converts the caller's cart into an order.
func CreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id"))
			return
		}

		result, err := svc.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			UserID:          userID,
			PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
			ShippingAddress: req.ShippingAddress,
			IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, createOrderResponse{
			Order:        result.Order,
			GatewayOrder: result.GatewayOrder,
			Replayed:     result.Replayed,
		})
	}
}

type processPaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required,uuid"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	PaymentID     string `json:"payment_id"`
}

type processPaymentResponse struct {
	Order     any    `json:"order"`
	PaymentID string `json:"payment_id,omitempty"`
	Captured  bool   `json:"captured"`
}

// ProcessPayment applies a client-submitted payment confirmation.
func ProcessPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), payments.ConfirmPaymentInput{
			OrderID:   orderID,
			Method:    enums.PaymentMethod(req.PaymentMethod),
			PaymentID: req.PaymentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, processPaymentResponse{
			Order:     result.Order,
			PaymentID: result.PaymentID,
			Captured:  result.Captured,
		})
	}
}

// ListUserOrders returns the user's order history, newest first.
func ListUserOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.ListUserOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns a single order with its items.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order": order})
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderStatus is the admin fulfillment transition.
func UpdateOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SetStatus(r.Context(), orderID, enums.OrderStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order": order})
	}
}

// PaymentMethods lists the methods accepted at checkout.
func PaymentMethods(svc payments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"payment_methods": svc.PaymentMethods()})
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]any{"value": raw})
	}
	return id, nil
}
