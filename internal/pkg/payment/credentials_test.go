package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentials(t *testing.T) {
	t.Setenv("PAYMENT_MERCHANT_ID", "M-9")
	t.Setenv("PAYMENT_TESTING_MODE", "true")
	t.Setenv("PAYMENT_LIVE_APP_ID", "live-app")
	t.Setenv("PAYMENT_LIVE_SECRET", "live-secret")
	t.Setenv("PAYMENT_TEST_APP_ID", "test-app")
	t.Setenv("PAYMENT_TEST_SECRET", "test-secret")
	t.Setenv("PAYMENT_TEST_URL", "https://sandbox.example/pay")

	c := LoadCredentials()
	assert.Equal(t, "M-9", c.MerchantID)
	assert.True(t, c.TestingMode)
	assert.Equal(t, EnvTest, c.EndpointEnv())
	assert.Equal(t, "test-app", c.Active().AppID)
	assert.Equal(t, "https://sandbox.example/pay", c.Active().PaymentURL)
	assert.Equal(t, "https://sandbox.example/pay", c.AltTest.PaymentURL)
	assert.False(t, c.AltTest.IsConfigured())
}

func TestCredentialSelection(t *testing.T) {
	c := Credentials{
		Live:    CredentialSet{Label: "live", Env: EnvLive, AppID: "l", Secret: "ls"},
		Test:    CredentialSet{Label: "test", Env: EnvTest, AppID: "t", Secret: "ts"},
		AltTest: CredentialSet{Label: "test-alternate", Env: EnvTest, AppID: "a", Secret: "as"},
	}

	assert.Equal(t, "live", c.Active().Label)
	assert.Equal(t, EnvLive, c.EndpointEnv())
	assert.Equal(t, "test-alternate", c.Select(true).Label)
	assert.Equal(t, "live", c.Select(false).Label)

	c.TestingMode = true
	assert.Equal(t, "test", c.Active().Label)
	assert.Equal(t, "test", c.Select(false).Label)
}

func TestKeyRingFor(t *testing.T) {
	c := Credentials{
		Live:    CredentialSet{Label: "live", AppID: "l", Secret: "ls"},
		Test:    CredentialSet{Label: "test", AppID: "t", Secret: "ts"},
		AltTest: CredentialSet{Label: "test-alternate", AppID: "a", Secret: "as"},
	}

	live := c.KeyRingFor(EnvLive).Keys()
	require.Len(t, live, 1)
	assert.Equal(t, "live", live[0].Label)

	test := c.KeyRingFor(EnvTest).Keys()
	require.Len(t, test, 2)
	assert.Equal(t, "test", test[0].Label)
	assert.Equal(t, "test-alternate", test[1].Label)

	c.AltTest = CredentialSet{}
	assert.Len(t, c.KeyRingFor(EnvTest).Keys(), 1)

	c.Test.Secret = " "
	assert.Empty(t, c.KeyRingFor(EnvTest).Keys())
}
