package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductType tags what a payment buys. It is decided when the intent is
// created and travels with the order through the gateway and back.
type ProductType string

const (
	ProductTicket  ProductType = "ticket"
	ProductVideo   ProductType = "video"
	ProductStorage ProductType = "storage"
)

// ParseProductType accepts the lowercase tag or the order id prefix form.
func ParseProductType(s string) (ProductType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ticket", "event":
		return ProductTicket, true
	case "video", "movie":
		return ProductVideo, true
	case "storage", "plan":
		return ProductStorage, true
	default:
		return "", false
	}
}

// Prefix is the order id prefix for the product type.
func (p ProductType) Prefix() string {
	return strings.ToUpper(string(p))
}

func (p ProductType) Valid() bool {
	switch p {
	case ProductTicket, ProductVideo, ProductStorage:
		return true
	}
	return false
}

// Environment separates live and sandbox traffic end to end.
type Environment string

const (
	EnvLive Environment = "live"
	EnvTest Environment = "test"
)

// PaymentIntent is the checkout request. It is never persisted; the gateway
// holds the state until it calls back.
type PaymentIntent struct {
	OrderID            string
	UserEmail          string
	CustomerName       string
	CustomerPhone      string
	Amount             decimal.Decimal
	Currency           string
	ProductDescription string
	Mode               ProductType
	SourceRef          uint64
	Language           string
}

// RequestFields are the fields covered by the payment request hash, in hash order.
type RequestFields struct {
	Amount        decimal.Decimal
	Currency      string
	Description   string
	OrderID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// CallbackFields extend the request fields with the gateway outcome.
type CallbackFields struct {
	RequestFields
	TransactionID string
	Status        string
}

// RequestFieldsOf extracts the hashed fields from an intent.
func RequestFieldsOf(intent PaymentIntent) RequestFields {
	return RequestFields{
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Description:   intent.ProductDescription,
		OrderID:       intent.OrderID,
		CustomerName:  intent.CustomerName,
		CustomerEmail: intent.UserEmail,
		CustomerPhone: intent.CustomerPhone,
	}
}
