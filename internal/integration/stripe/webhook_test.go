package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/opositaprep/checkout-service/internal/domain"
	"github.com/opositaprep/checkout-service/pkg/logger"
)

const testSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEventPayload(t *testing.T, metadata map[string]string) []byte {
	t.Helper()
	session := map[string]any{
		"id":           "cs_test_123",
		"mode":         "payment",
		"amount_total": 6000,
		"currency":     "eur",
		"metadata":     metadata,
	}
	raw, err := json.Marshal(session)
	require.NoError(t, err)

	event := map[string]any{
		"id":          "evt_test_1",
		"type":        EventCheckoutSessionCompleted,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestVerifyAndParseValidSignature(t *testing.T) {
	verifier := NewVerifier(testSecret, false, logger.New(logger.ERROR))
	payload := checkoutEventPayload(t, map[string]string{"plan": "family_pack"})

	event, err := verifier.VerifyAndParse(payload, signPayload(t, payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutSessionCompleted, string(event.Type))
}

func TestVerifyAndParseRejectsBadSignature(t *testing.T) {
	verifier := NewVerifier(testSecret, false, logger.New(logger.ERROR))
	payload := checkoutEventPayload(t, nil)

	_, err := verifier.VerifyAndParse(payload, signPayload(t, payload, "whsec_wrong_secret"))
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	_, err = verifier.VerifyAndParse(payload, "")
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerifyAndParseUnsignedDevelopmentMode(t *testing.T) {
	verifier := NewVerifier("", true, logger.New(logger.ERROR))
	payload := checkoutEventPayload(t, nil)

	event, err := verifier.VerifyAndParse(payload, "")
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutSessionCompleted, string(event.Type))
}

func TestParseCheckoutCompleted(t *testing.T) {
	verifier := NewVerifier("", true, logger.New(logger.ERROR))
	payload := checkoutEventPayload(t, map[string]string{
		"plan":             "family_pack",
		"tier":             "5",
		"billingCycle":     "monthly",
		"addonPublicCount": "2",
		"slotCount":        "5",
		"buyerUserId":      "user-buyer",
		"buyerEmail":       "buyer@example.com",
		"buyerRole":        "alumno",
		"referralCode":     "MARIA2024",
		"referrerUserId":   "user-maria",
		"referrerRole":     "alumno",
	})

	event, err := verifier.VerifyAndParse(payload, "")
	require.NoError(t, err)

	completed, err := ParseCheckoutCompleted(event)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", completed.SessionID)
	assert.Equal(t, domain.CheckoutModePayment, completed.Mode)
	assert.Equal(t, int64(6000), completed.AmountCents)
	assert.Equal(t, "eur", completed.Currency)

	meta := completed.Metadata
	assert.Equal(t, domain.Tier5, meta.Tier)
	assert.Equal(t, 2, meta.AddonPublicCount)
	assert.Equal(t, "user-buyer", meta.BuyerUserID)
	assert.True(t, meta.HasReferral())
	assert.Equal(t, "user-maria", meta.ReferrerUserID)
}
