package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeHash returns the hex SHA-256 digest of secret followed by fields,
// concatenated without separators.
func ComputeHash(secret string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(secret))
	for _, f := range fields {
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseAmount parses a gateway amount string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount.Wrap(err)
	}
	return d, nil
}

func (f RequestFields) ordered() []string {
	return []string{
		FormatAmount(f.Amount),
		f.Currency,
		f.Description,
		f.OrderID,
		f.CustomerName,
		f.CustomerEmail,
		f.CustomerPhone,
	}
}

// HashVerifier signs payment requests and authenticates callbacks.
type HashVerifier struct{}

func NewHashVerifier() HashVerifier {
	return HashVerifier{}
}

func (HashVerifier) RequestHash(set CredentialSet, f RequestFields) string {
	return ComputeHash(set.Secret, f.ordered()...)
}

func (HashVerifier) CallbackHash(set CredentialSet, f CallbackFields) string {
	fields := append(f.RequestFields.ordered(), f.TransactionID, f.Status)
	return ComputeHash(set.Secret, fields...)
}

// VerifyCallback checks got against every key of the ring and reports the set
// that matched.
func (v HashVerifier) VerifyCallback(ring KeyRing, f CallbackFields, got string) (CredentialSet, bool) {
	got = strings.ToLower(strings.TrimSpace(got))
	if got == "" {
		return CredentialSet{}, false
	}
	for _, set := range ring.Keys() {
		want := v.CallbackHash(set, f)
		if subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1 {
			return set, true
		}
	}
	return CredentialSet{}, false
}
