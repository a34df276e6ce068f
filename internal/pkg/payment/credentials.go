package payment

import (
	"strings"

	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

// CredentialSet is one app id / secret pair together with the gateway
// endpoints it is valid for.
type CredentialSet struct {
	Label      string
	Env        Environment
	AppID      string
	Secret     string
	PaymentURL string
	LedgerURL  string
}

func (c CredentialSet) IsConfigured() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.Secret) != ""
}

// KeyRing lists the keys a callback may be signed with. The alternate key is
// accepted as well as the primary one; only sandbox key rings carry one.
type KeyRing struct {
	Primary   CredentialSet
	Alternate *CredentialSet
}

// Keys returns the configured keys in verification order.
func (k KeyRing) Keys() []CredentialSet {
	keys := make([]CredentialSet, 0, 2)
	if k.Primary.IsConfigured() {
		keys = append(keys, k.Primary)
	}
	if k.Alternate != nil && k.Alternate.IsConfigured() {
		keys = append(keys, *k.Alternate)
	}
	return keys
}

// Credentials is the full gateway configuration of one deployment.
type Credentials struct {
	MerchantID  string
	TestingMode bool
	Language    string
	Live        CredentialSet
	Test        CredentialSet
	AltTest     CredentialSet
}

// LoadCredentials reads the gateway configuration from the environment.
func LoadCredentials() Credentials {
	testURL := env.GetEnv("PAYMENT_TEST_URL", "https://sandbox.gateway.example/pay")
	testLedgerURL := env.GetEnv("PAYMENT_TEST_LEDGER_URL", "https://sandbox.gateway.example/api/transactions")
	return Credentials{
		MerchantID:  env.GetEnv("PAYMENT_MERCHANT_ID", ""),
		TestingMode: env.GetEnvBool("PAYMENT_TESTING_MODE", false),
		Language:    env.GetEnv("PAYMENT_LANGUAGE", "en"),
		Live: CredentialSet{
			Label:      "live",
			Env:        EnvLive,
			AppID:      env.GetEnv("PAYMENT_LIVE_APP_ID", ""),
			Secret:     env.GetEnv("PAYMENT_LIVE_SECRET", ""),
			PaymentURL: env.GetEnv("PAYMENT_LIVE_URL", "https://gateway.example/pay"),
			LedgerURL:  env.GetEnv("PAYMENT_LIVE_LEDGER_URL", "https://gateway.example/api/transactions"),
		},
		Test: CredentialSet{
			Label:      "test",
			Env:        EnvTest,
			AppID:      env.GetEnv("PAYMENT_TEST_APP_ID", ""),
			Secret:     env.GetEnv("PAYMENT_TEST_SECRET", ""),
			PaymentURL: testURL,
			LedgerURL:  testLedgerURL,
		},
		AltTest: CredentialSet{
			Label:      "test-alternate",
			Env:        EnvTest,
			AppID:      env.GetEnv("PAYMENT_ALT_TEST_APP_ID", ""),
			Secret:     env.GetEnv("PAYMENT_ALT_TEST_SECRET", ""),
			PaymentURL: env.GetEnv("PAYMENT_ALT_TEST_URL", testURL),
			LedgerURL:  env.GetEnv("PAYMENT_ALT_TEST_LEDGER_URL", testLedgerURL),
		},
	}
}

// Active is the set selected by the testing-mode flag.
func (c Credentials) Active() CredentialSet {
	if c.TestingMode {
		return c.Test
	}
	return c.Live
}

// Select returns the active set, or the alternate sandbox set when forced.
func (c Credentials) Select(useAlternate bool) CredentialSet {
	if useAlternate {
		return c.AltTest
	}
	return c.Active()
}

// KeyRingFor returns the verification keys for callbacks of an environment.
// The live ring holds exactly one key; sandbox rings accept either sandbox.
func (c Credentials) KeyRingFor(e Environment) KeyRing {
	if e == EnvLive {
		return KeyRing{Primary: c.Live}
	}
	alt := c.AltTest
	return KeyRing{Primary: c.Test, Alternate: &alt}
}

// EndpointEnv is the environment the live webhook endpoint runs in.
func (c Credentials) EndpointEnv() Environment {
	if c.TestingMode {
		return EnvTest
	}
	return EnvLive
}
