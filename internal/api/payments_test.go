package api

import (
	"net/http"
	"strings"
	"testing"

	"guardian-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	products, ok := dataField(t, resp, "products").([]interface{})
	require.True(t, ok)
	assert.Len(t, products, 3)
}

func TestCreatePaymentValidation(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "not-an-email",
		"product_id": "guardian_basic",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email": "buyer@example.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "no_such_product",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePaymentReturnsApprovalURL(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	approval := dataField(t, resp, "approval_url").(string)
	assert.True(t, strings.HasPrefix(approval, "https://gateway.example.com/approve/"))
	assert.NotEmpty(t, dataField(t, resp, "payment_id"))
}

func TestExecutePaymentHappyPath(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reference := dataField(t, resp, "payment_id").(string)

	w, resp = env.request(t, http.MethodPost, "/api/payments/execute", gin.H{
		"payment_id": reference,
		"payer_id":   "PAYER-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	key := dataField(t, resp, "activation_key").(string)
	assert.NotEmpty(t, key)
	link := dataField(t, resp, "download_link").(string)
	assert.Equal(t, "https://shop.example.com/api/download/"+key, link)
	assert.Equal(t, true, dataField(t, resp, "email_sent"))
	assert.Equal(t, 1, env.mailer.sends)
}

func TestExecutePaymentEmailFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true

	_, key := env.buyPurchase(t, "buyer@example.com", "guardian_basic")
	assert.NotEmpty(t, key)

	// The purchase completed; the buyer can still download despite the mail
	// outage.
	w, _ := env.request(t, http.MethodGet, "/api/download/"+key, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExecutePaymentEmailFlagReflectsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true

	w, resp := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reference := dataField(t, resp, "payment_id").(string)

	w, resp = env.request(t, http.MethodPost, "/api/payments/execute", gin.H{
		"payment_id": reference,
		"payer_id":   "PAYER-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataField(t, resp, "email_sent"))
	assert.Contains(t, resp.Message, "Email delivery failed")
}

func TestExecutePaymentUnknownReference(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.request(t, http.MethodPost, "/api/payments/execute", gin.H{
		"payment_id": "PAY-missing",
		"payer_id":   "PAYER-1",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutePaymentGatewayFailure(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reference := dataField(t, resp, "payment_id").(string)

	env.gateway.finalizeErr = services.ErrGatewayUnavailable
	w, _ = env.request(t, http.MethodPost, "/api/payments/execute", gin.H{
		"payment_id": reference,
		"payer_id":   "PAYER-1",
	}, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCancelPayment(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reference := dataField(t, resp, "payment_id").(string)

	w, _ = env.request(t, http.MethodPost, "/api/payments/cancel", gin.H{
		"payment_id": reference,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Cancelled is terminal.
	w, _ = env.request(t, http.MethodPost, "/api/payments/cancel", gin.H{
		"payment_id": reference,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = env.request(t, http.MethodPost, "/api/payments/cancel", gin.H{
		"payment_id": "PAY-missing",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
