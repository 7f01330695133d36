package main

import (
	"time"

	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/money"
	"github.com/MikeMC777/storefront/internal/offer"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/pricing"
)

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ValidationErrorResponse carries one message per rejected field.
// swagger:model
type ValidationErrorResponse struct {
	Error  string            `json:"error"  example:"validation failed"`
	Fields map[string]string `json:"fields"`
}

// MenuItem is an item with its price after the best active offer.
// swagger:model
type MenuItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CategoryID  int64  `json:"category_id"`
	ImageURL    string `json:"image_url,omitempty"`
	Price       string `json:"price"       example:"12.50"`
	FinalPrice  string `json:"final_price" example:"10.00"`
	OfferID     *int64 `json:"offer_id,omitempty"`
	OfferTitle  string `json:"offer_title,omitempty"`
}

func toMenuItem(it catalog.Item, r offer.Resolution) MenuItem {
	m := MenuItem{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		CategoryID:  it.CategoryID,
		ImageURL:    it.ImageURL,
		Price:       r.Base.StringFixed(2),
		FinalPrice:  r.Unit.StringFixed(2),
	}
	if r.Offer != nil {
		id := r.Offer.ID
		m.OfferID = &id
		m.OfferTitle = r.Offer.Title
	}
	return m
}

// MenuResponse represents the paginated menu.
// swagger:model
type MenuResponse struct {
	// category slug applied
	Category string `json:"category,omitempty"`
	// search query applied
	Q      string     `json:"q,omitempty"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Items  []MenuItem `json:"items"`
}

// OfferView is an active offer as shown on the offers page.
// swagger:model
type OfferView struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DiscountPercent string    `json:"discount_percent" example:"20.00"`
	ItemIDs         []int64   `json:"item_ids"`
	CategoryIDs     []int64   `json:"category_ids"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ImageURL        string    `json:"image_url,omitempty"`
}

func toOfferView(o catalog.Offer) OfferView {
	v := OfferView{
		ID:              o.ID,
		Title:           o.Title,
		Description:     o.Description,
		DiscountPercent: o.DiscountPercent.StringFixed(2),
		ItemIDs:         o.ItemIDs,
		CategoryIDs:     o.CategoryIDs,
		StartDate:       o.StartDate,
		EndDate:         o.EndDate,
		ImageURL:        o.ImageURL,
	}
	if v.ItemIDs == nil {
		v.ItemIDs = []int64{}
	}
	if v.CategoryIDs == nil {
		v.CategoryIDs = []int64{}
	}
	return v
}

// CartLine is one priced cart row.
// swagger:model
type CartLine struct {
	ItemID         int64  `json:"item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPrice      string `json:"unit_price"`
	FinalUnitPrice string `json:"final_unit_price"`
	Subtotal       string `json:"subtotal"`
	OfferID        *int64 `json:"offer_id,omitempty"`
	OfferTitle     string `json:"offer_title,omitempty"`
}

// CartView is the priced session cart.
// swagger:model
type CartView struct {
	Lines          []CartLine `json:"lines"`
	Count          int        `json:"count"`
	OriginalTotal  string     `json:"original_total"  example:"30.00"`
	DiscountAmount string     `json:"discount_amount" example:"5.00"`
	FinalTotal     string     `json:"final_total"     example:"25.00"`
	// ids in the cart that no longer exist in the catalog
	Skipped []int64 `json:"skipped,omitempty"`
}

func toCartView(q pricing.Quote) CartView {
	v := CartView{
		Lines:          make([]CartLine, 0, len(q.Lines)),
		Count:          q.Count(),
		OriginalTotal:  q.Totals.Original.StringFixed(2),
		DiscountAmount: q.Totals.Discount.StringFixed(2),
		FinalTotal:     q.Totals.Final.StringFixed(2),
		Skipped:        q.Skipped,
	}
	for _, l := range q.Lines {
		v.Lines = append(v.Lines, CartLine{
			ItemID:         l.ItemID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitOriginal.StringFixed(2),
			FinalUnitPrice: l.UnitFinal.StringFixed(2),
			Subtotal:       l.Subtotal.StringFixed(2),
			OfferID:        l.OfferID,
			OfferTitle:     l.OfferTitle,
		})
	}
	return v
}

// QuantityRequest payload of a cart update.
// swagger:model QuantityRequest
type QuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0,lte=99" example:"2"`
}

// CheckoutRequest payload of checkout.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	Name                string  `json:"name"                 example:"Ana Perez"`
	Email               string  `json:"email"                example:"ana@example.com"`
	Phone               string  `json:"phone"                example:"555 123 4567"`
	DeliveryAddress     string  `json:"delivery_address"     example:"Calle 10 #4-20"`
	SpecialInstructions string  `json:"special_instructions" example:"Ring twice"`
	UserID              *string `json:"user_id,omitempty"`
}

func (r CheckoutRequest) customer() order.Customer {
	return order.Customer{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.DeliveryAddress,
		Instructions: r.SpecialInstructions,
		UserID:       r.UserID,
	}
}

// StatusRequest payload of an order status change.
// swagger:model StatusRequest
type StatusRequest struct {
	Status string `json:"status" binding:"required" example:"confirmed"`
}

// PaymentStatusRequest payload of a payment status change.
// swagger:model PaymentStatusRequest
type PaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required" example:"paid"`
}

// OrderItemView is a snapshotted order line.
// swagger:model
type OrderItemView struct {
	ItemID        int64  `json:"item_id"`
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	OriginalPrice string `json:"original_price"`
	FinalPrice    string `json:"final_price"`
	Subtotal      string `json:"subtotal"`
	OfferID       *int64 `json:"offer_id,omitempty"`
}

// OrderView is the order confirmation.
// swagger:model
type OrderView struct {
	OrderNumber         string          `json:"order_number" example:"ORD202610170001"`
	UserID              *string         `json:"user_id,omitempty"`
	CustomerName        string          `json:"customer_name"`
	CustomerEmail       string          `json:"customer_email"`
	CustomerPhone       string          `json:"customer_phone"`
	DeliveryAddress     string          `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Status              string          `json:"status"         example:"pending"`
	PaymentStatus       string          `json:"payment_status" example:"pending"`
	OriginalTotal       string          `json:"original_total"`
	DiscountAmount      string          `json:"discount_amount"`
	FinalTotal          string          `json:"final_total"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Items               []OrderItemView `json:"items"`
}

func toOrderView(o *order.Order) OrderView {
	v := OrderView{
		OrderNumber:         o.OrderNumber,
		UserID:              o.UserID,
		CustomerName:        o.CustomerName,
		CustomerEmail:       o.CustomerEmail,
		CustomerPhone:       o.CustomerPhone,
		DeliveryAddress:     o.DeliveryAddress,
		SpecialInstructions: o.SpecialInstructions,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		OriginalTotal:       o.OriginalTotal.StringFixed(2),
		DiscountAmount:      o.DiscountAmount.StringFixed(2),
		FinalTotal:          o.FinalTotal.StringFixed(2),
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
		Items:               make([]OrderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ItemID:        it.ItemID,
			Name:          it.ItemName,
			Quantity:      it.Quantity,
			OriginalPrice: it.OriginalPrice.StringFixed(2),
			FinalPrice:    it.FinalPrice.StringFixed(2),
			Subtotal:      money.Mul(it.FinalPrice, it.Quantity).StringFixed(2),
			OfferID:       it.OfferID,
		})
	}
	return v
}

// OrderListResponse represents a page of a user's order history.
// swagger:model
type OrderListResponse struct {
	UserID string      `json:"user_id"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Orders []OrderView `json:"orders"`
}
