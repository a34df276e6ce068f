package payment

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackFromFormTrimsValues(t *testing.T) {
	form := url.Values{}
	form.Set(FieldTransactionID, " TX1 ")
	form.Set(FieldAmount, "10.5")
	form.Set(FieldOrderID, "TICKET_1_1718000000000\n")
	form.Set(FieldProductType, "ticket")

	cb := CallbackFromForm(form.Get)
	assert.Equal(t, "TX1", cb.TransactionID)
	assert.Equal(t, "TICKET_1_1718000000000", cb.OrderID)
	assert.Equal(t, "ticket", cb.ProductType)
	assert.Empty(t, cb.SourceRef)

	fields, err := cb.Fields()
	require.NoError(t, err)
	assert.Equal(t, "10.50", FormatAmount(fields.Amount))
}

func TestCallbackFormOmitsEmptyOptionalFields(t *testing.T) {
	form := Callback{TransactionID: "TX1", Amount: "1.00"}.Form()
	assert.Equal(t, "TX1", form.Get(FieldTransactionID))
	_, hasMethod := form[FieldPaymentMethod]
	assert.False(t, hasMethod)
	_, hasHash := form[FieldHash]
	assert.True(t, hasHash)
}

func TestCallbackFieldsRejectsBadAmount(t *testing.T) {
	for _, amount := range []string{"", "abc", "1,00"} {
		_, err := Callback{TransactionID: "TX1", Amount: amount}.Fields()
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}
}

func TestCallbackSucceeded(t *testing.T) {
	tests := map[string]bool{
		"success":   true,
		"SUCCESS":   true,
		"completed": true,
		"paid":      true,
		"failed":    false,
		"pending":   false,
		"":          false,
	}
	for status, want := range tests {
		assert.Equal(t, want, Callback{Status: status}.Succeeded(), status)
	}
}
