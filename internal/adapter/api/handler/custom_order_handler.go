package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/storage"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

// ImageUploader issues direct-upload URLs for custom-order item images.
type ImageUploader interface {
	ItemImageUploadURL(ctx context.Context, sellerID, contentType string) (*storage.UploadTicket, error)
}

type CustomOrderHandler struct {
	customOrderUseCase *usecase.CustomOrderUseCase
	names              *NameResolver
	uploader           ImageUploader
}

func NewCustomOrderHandler(customOrderUseCase *usecase.CustomOrderUseCase, names *NameResolver, uploader ImageUploader) *CustomOrderHandler {
	return &CustomOrderHandler{
		customOrderUseCase: customOrderUseCase,
		names:              names,
		uploader:           uploader,
	}
}

type customOrderItemRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	UnitPrice   float64 `json:"unit_price" validate:"gt=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	ItemType    string  `json:"item_type" validate:"omitempty,oneof=physical digital"`
}

type createCustomOrderRequest struct {
	BuyerID        string                   `json:"buyer_id" validate:"required"`
	ConversationID string                   `json:"conversation_id" validate:"required"`
	Items          []customOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingCost   float64                  `json:"shipping_cost" validate:"gte=0"`
	PaymentMethod  string                   `json:"payment_method" validate:"required,oneof=cash_on_delivery bank_transfer"`
	ItemType       string                   `json:"item_type" validate:"omitempty,oneof=physical digital"`
	Notes          string                   `json:"notes" validate:"max=1000"`
}

type acceptCustomOrderRequest struct {
	Address string `json:"address" validate:"required,max=500"`
	Phone   string `json:"phone" validate:"required,max=32"`
}

type updateCustomOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACCEPTED PAID SHIPPED DELIVERED CANCELLED"`
}

type uploadURLRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

func (h *CustomOrderHandler) CreateCustomOrder(c echo.Context) error {
	var req createCustomOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	sellerID := c.Get("uid").(string)

	items := make([]entity.CustomOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, entity.CustomOrderItem{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			ImageURL:    item.ImageURL,
			ItemType:    entity.ItemType(item.ItemType),
		})
	}

	order, err := h.customOrderUseCase.CreateCustomOrder(ctx, usecase.CreateCustomOrderInput{
		SellerID:       sellerID,
		SellerName:     h.names.Resolve(ctx, sellerID),
		BuyerID:        req.BuyerID,
		BuyerName:      h.names.Resolve(ctx, req.BuyerID),
		ConversationID: req.ConversationID,
		Items:          items,
		ShippingCost:   req.ShippingCost,
		PaymentMethod:  entity.PaymentMethod(req.PaymentMethod),
		ItemType:       entity.ItemType(req.ItemType),
		Notes:          req.Notes,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, order)
}

func (h *CustomOrderHandler) GetCustomOrder(c echo.Context) error {
	userID := c.Get("uid").(string)

	order, err := h.customOrderUseCase.GetCustomOrder(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	if order == nil {
		return response.Error(c, errors.NotFound("Custom order", nil))
	}

	return response.Success(c, order)
}

func (h *CustomOrderHandler) ListConversationCustomOrders(c echo.Context) error {
	userID := c.Get("uid").(string)

	orders, err := h.customOrderUseCase.ListCustomOrders(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, orders)
}

// AcceptCustomOrder accepts on behalf of the caller, who becomes the buyer if the proposal
// was addressed to someone else.
func (h *CustomOrderHandler) AcceptCustomOrder(c echo.Context) error {
	var req acceptCustomOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	buyerID := c.Get("uid").(string)

	result, err := h.customOrderUseCase.AcceptCustomOrder(ctx, usecase.AcceptCustomOrderInput{
		OrderID:   c.Param("id"),
		BuyerID:   buyerID,
		BuyerName: h.names.Resolve(ctx, buyerID),
		Address:   req.Address,
		Phone:     req.Phone,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}

func (h *CustomOrderHandler) UpdateCustomOrderBuyer(c echo.Context) error {
	ctx := c.Request().Context()
	buyerID := c.Get("uid").(string)

	order, err := h.customOrderUseCase.UpdateCustomOrderBuyer(ctx, c.Param("id"), buyerID, buyerID, h.names.Resolve(ctx, buyerID))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

func (h *CustomOrderHandler) MaterializeCustomOrder(c echo.Context) error {
	userID := c.Get("uid").(string)

	result, err := h.customOrderUseCase.RetryMaterialization(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}

func (h *CustomOrderHandler) UpdateCustomOrderStatus(c echo.Context) error {
	var req updateCustomOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.customOrderUseCase.UpdateCustomOrderStatus(c.Request().Context(), c.Param("id"), entity.CustomOrderStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

func (h *CustomOrderHandler) CreateUploadURL(c echo.Context) error {
	if h.uploader == nil {
		return response.Error(c, errors.New("SERVICE_UNAVAILABLE", "Image uploads are not configured", http.StatusServiceUnavailable, nil))
	}

	var req uploadURLRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}
	if !storage.IsSupportedImage(req.ContentType) {
		return response.Error(c, errors.Validation("content_type must be a jpeg, png, gif or webp image"))
	}

	sellerID := c.Get("uid").(string)
	ticket, err := h.uploader.ItemImageUploadURL(c.Request().Context(), sellerID, req.ContentType)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to create upload URL", err))
	}

	return response.Created(c, ticket)
}
