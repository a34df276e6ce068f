package payment

import (
	"net/url"
	"strings"
)

// Form field names of the gateway callback.
const (
	FieldTransactionID      = "transaction_id"
	FieldAmount             = "amount"
	FieldCurrency           = "currency"
	FieldProductDescription = "product_description"
	FieldOrderID            = "customer_order_id"
	FieldCustomerName       = "customer_name"
	FieldCustomerEmail      = "customer_email"
	FieldCustomerPhone      = "customer_phone"
	FieldStatus             = "status"
	FieldHash               = "hash"
	FieldPaymentMethod      = "payment_method"
	FieldChannel            = "channel"
	FieldProductType        = "product_type"
	FieldSourceRef          = "source_ref"
)

// Callback is the raw payload the gateway posts once a transaction settles.
type Callback struct {
	TransactionID      string `json:"transaction_id"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	ProductDescription string `json:"product_description"`
	OrderID            string `json:"customer_order_id"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	CustomerPhone      string `json:"customer_phone"`
	Status             string `json:"status"`
	Hash               string `json:"hash"`
	PaymentMethod      string `json:"payment_method,omitempty"`
	Channel            string `json:"channel,omitempty"`
	ProductType        string `json:"product_type,omitempty"`
	SourceRef          string `json:"source_ref,omitempty"`
}

// CallbackFromForm reads a callback through a form value getter such as
// fiber's Ctx.FormValue or url.Values.Get.
func CallbackFromForm(get func(key string) string) Callback {
	v := func(k string) string { return strings.TrimSpace(get(k)) }
	return Callback{
		TransactionID:      v(FieldTransactionID),
		Amount:             v(FieldAmount),
		Currency:           v(FieldCurrency),
		ProductDescription: v(FieldProductDescription),
		OrderID:            v(FieldOrderID),
		CustomerName:       v(FieldCustomerName),
		CustomerEmail:      v(FieldCustomerEmail),
		CustomerPhone:      v(FieldCustomerPhone),
		Status:             v(FieldStatus),
		Hash:               v(FieldHash),
		PaymentMethod:      v(FieldPaymentMethod),
		Channel:            v(FieldChannel),
		ProductType:        v(FieldProductType),
		SourceRef:          v(FieldSourceRef),
	}
}

// Form encodes the callback the way the gateway does.
func (c Callback) Form() url.Values {
	form := url.Values{}
	form.Set(FieldTransactionID, c.TransactionID)
	form.Set(FieldAmount, c.Amount)
	form.Set(FieldCurrency, c.Currency)
	form.Set(FieldProductDescription, c.ProductDescription)
	form.Set(FieldOrderID, c.OrderID)
	form.Set(FieldCustomerName, c.CustomerName)
	form.Set(FieldCustomerEmail, c.CustomerEmail)
	form.Set(FieldCustomerPhone, c.CustomerPhone)
	form.Set(FieldStatus, c.Status)
	form.Set(FieldHash, c.Hash)
	if c.PaymentMethod != "" {
		form.Set(FieldPaymentMethod, c.PaymentMethod)
	}
	if c.Channel != "" {
		form.Set(FieldChannel, c.Channel)
	}
	if c.ProductType != "" {
		form.Set(FieldProductType, c.ProductType)
	}
	if c.SourceRef != "" {
		form.Set(FieldSourceRef, c.SourceRef)
	}
	return form
}

// Fields returns the hashed part of the callback.
func (c Callback) Fields() (CallbackFields, error) {
	amount, err := ParseAmount(c.Amount)
	if err != nil {
		return CallbackFields{}, err
	}
	return CallbackFields{
		RequestFields: RequestFields{
			Amount:        amount,
			Currency:      c.Currency,
			Description:   c.ProductDescription,
			OrderID:       c.OrderID,
			CustomerName:  c.CustomerName,
			CustomerEmail: c.CustomerEmail,
			CustomerPhone: c.CustomerPhone,
		},
		TransactionID: c.TransactionID,
		Status:        c.Status,
	}, nil
}

// Succeeded reports whether the gateway status means the money was captured.
func (c Callback) Succeeded() bool {
	switch strings.ToLower(c.Status) {
	case "success", "successful", "completed", "approved", "paid":
		return true
	default:
		return false
	}
}
