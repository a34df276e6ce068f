package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

const (
	ledgerDateLayout = "2006-01-02"
	maxLedgerBody    = 8 << 20
)

// Transaction is one entry of the gateway ledger.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Channel       string          `json:"channel"`
	CreatedAt     string          `json:"created_at"`
}

// Callback mirrors the fields the gateway would have posted for t. The hash
// is left empty for the caller to sign.
func (t Transaction) Callback() payment.Callback {
	return payment.Callback{
		TransactionID:      t.TransactionID,
		Amount:             payment.FormatAmount(t.Amount),
		Currency:           t.Currency,
		ProductDescription: t.Description,
		OrderID:            t.OrderID,
		CustomerName:       t.CustomerName,
		CustomerEmail:      t.CustomerEmail,
		CustomerPhone:      t.CustomerPhone,
		Status:             t.Status,
		PaymentMethod:      t.PaymentMethod,
		Channel:            t.Channel,
	}
}

type ledgerResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// Client talks to the external payment provider.
type Client struct {
	HTTPClient *http.Client
	hashes     payment.HashVerifier
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HTTPClient: httpClient, hashes: payment.NewHashVerifier()}
}

// BuildPaymentURL signs the intent and returns the gateway redirect URL.
func (c *Client) BuildPaymentURL(intent payment.PaymentIntent, set payment.CredentialSet) (string, error) {
	if !intent.Amount.IsPositive() {
		return "", payment.ErrInvalidAmount
	}
	if intent.SourceRef == 0 {
		return "", payment.ErrMissingIdentifier
	}
	if strings.TrimSpace(intent.OrderID) == "" {
		return "", payment.ErrMissingIdentifier
	}
	if !intent.Mode.Valid() {
		return "", payment.ErrMissingIdentifier
	}
	if !set.IsConfigured() {
		return "", payment.ErrMissingMerchantConfig
	}

	u, err := url.Parse(set.PaymentURL)
	if err != nil || u.Host == "" {
		return "", payment.ErrMissingMerchantConfig.Wrap(fmt.Errorf("invalid payment url %q", set.PaymentURL))
	}

	lang := intent.Language
	if lang == "" {
		lang = "en"
	}

	q := u.Query()
	q.Set("app_id", set.AppID)
	q.Set("currency", intent.Currency)
	q.Set("amount", payment.FormatAmount(intent.Amount))
	q.Set("description", intent.ProductDescription)
	q.Set("order_id", intent.OrderID)
	q.Set("hash", c.hashes.RequestHash(set, payment.RequestFieldsOf(intent)))
	q.Set("customer_name", intent.CustomerName)
	q.Set("customer_email", intent.UserEmail)
	q.Set("customer_phone", intent.CustomerPhone)
	q.Set("language", lang)
	q.Set(payment.FieldProductType, string(intent.Mode))
	q.Set(payment.FieldSourceRef, strconv.FormatUint(intent.SourceRef, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ListTransactions fetches the ledger for the inclusive date range.
func (c *Client) ListTransactions(ctx context.Context, merchantID string, start, end time.Time, set payment.CredentialSet) ([]Transaction, error) {
	if strings.TrimSpace(merchantID) == "" || !set.IsConfigured() {
		return nil, payment.ErrMissingMerchantConfig
	}
	if end.Before(start) {
		return nil, payment.ErrInvalidDateRange
	}

	u, err := url.Parse(set.LedgerURL)
	if err != nil || u.Host == "" {
		return nil, payment.ErrMissingMerchantConfig.Wrap(fmt.Errorf("invalid ledger url %q", set.LedgerURL))
	}
	q := u.Query()
	q.Set("merchant_id", merchantID)
	q.Set("app_id", set.AppID)
	q.Set("start_date", start.Format(ledgerDateLayout))
	q.Set("end_date", end.Format(ledgerDateLayout))
	q.Set("hash", payment.ListingHash(merchantID, set.AppID, set.Secret))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, payment.ErrGatewayUnavailable.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Errorf("[Gateway] Ledger request failed: %v", err)
		return nil, payment.ErrGatewayUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLedgerBody))
	if err != nil {
		return nil, payment.ErrGatewayUnavailable.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Errorf("[Gateway] Ledger responded with status %d", resp.StatusCode)
		return nil, payment.ErrGatewayUnavailable.Wrap(fmt.Errorf("ledger status %d", resp.StatusCode))
	}

	var out ledgerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, payment.ErrGatewayUnavailable.Wrap(fmt.Errorf("malformed ledger body: %w", err))
	}
	if out.Transactions == nil {
		return nil, payment.ErrGatewayUnavailable.Wrap(errors.New("ledger body has no transactions field"))
	}

	log.Infof("[Gateway] Ledger %s..%s returned %d transactions (%s)", start.Format(ledgerDateLayout), end.Format(ledgerDateLayout), len(out.Transactions), set.Label)
	return out.Transactions, nil
}
