package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"order_number"`
	UserID              *string         `json:"user_id,omitempty"`
	CustomerName        string          `json:"customer_name"`
	CustomerEmail       string          `json:"customer_email"`
	CustomerPhone       string          `json:"customer_phone"`
	DeliveryAddress     string          `json:"delivery_address"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Status              Status          `json:"status"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	OriginalTotal       decimal.Decimal `json:"original_total"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	FinalTotal          decimal.Decimal `json:"final_total"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Items               []OrderItem     `json:"items,omitempty"`
}

// OrderItem snapshots name and unit prices at order time; later catalog
// changes do not reach it.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	OfferID       *int64          `json:"offer_id,omitempty"`
}

// Customer is the contact information collected at checkout.
type Customer struct {
	Name         string  `json:"name"                 validate:"required,max=100"`
	Email        string  `json:"email"                validate:"required,email,max=254"`
	Phone        string  `json:"phone"                validate:"required,phone"`
	Address      string  `json:"delivery_address"     validate:"required,max=500"`
	Instructions string  `json:"special_instructions" validate:"max=1000"`
	UserID       *string `json:"user_id,omitempty"    validate:"omitempty,uuid"`
}
