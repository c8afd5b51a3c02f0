package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborlane/storefront-backend/pkg/db/models"
)

// OrderItemInput is one requested product/quantity pair.
type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderRequest is the placement payload.
type PlaceOrderRequest struct {
	Items []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderResponse is the wire shape for an order header. Amounts render as
// strings so clients never receive binary floating point.
type OrderResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalAmount string    `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// LineItemResponse is one priced line of an order.
type LineItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Qty       int       `json:"quantity"`
	Total     string    `json:"total"`
}

// PlaceOrderResponse confirms a committed placement.
type PlaceOrderResponse struct {
	Success bool               `json:"success"`
	Order   OrderResponse      `json:"order"`
	Items   []LineItemResponse `json:"items"`
}

// OrderDetailResponse returns a stored order with its lines.
type OrderDetailResponse struct {
	Order OrderResponse      `json:"order"`
	Items []LineItemResponse `json:"items"`
}

// ListOrdersQuery captures history pagination inputs.
type ListOrdersQuery struct {
	Limit  int
	Cursor string
}

func toOrderResponse(order models.Order) OrderResponse {
	return OrderResponse{
		ID:          order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
	}
}

func toOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return out
}

func toLineItemResponses(items []models.OrderLineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, LineItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Qty:       item.Qty,
			Total:     item.Total.StringFixed(2),
		})
	}
	return out
}
