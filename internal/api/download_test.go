package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadHappyPath(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.buyPurchase(t, "buyer@example.com", "guardian_basic")

	w, _ := env.request(t, http.MethodGet, "/api/download/"+key, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "guardian_basic")
	assert.Equal(t, "test archive guardian_basic.zip", w.Body.String())
}

func TestDownloadLimitExceeded(t *testing.T) {
	env := newTestEnv(t)
	// guardian_basic allows 5 downloads.
	_, key := env.buyPurchase(t, "buyer@example.com", "guardian_basic")

	for i := 0; i < 5; i++ {
		w, _ := env.request(t, http.MethodGet, "/api/download/"+key, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, resp := env.request(t, http.MethodGet, "/api/download/"+key, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, resp.Message, "Download limit exceeded")
}

func TestDownloadUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.request(t, http.MethodGet, "/api/download/KEY-DOES-NOT-EXIST", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid activation key", resp.Message)
}

func TestDownloadBadKeyFormat(t *testing.T) {
	env := newTestEnv(t)

	// Too short.
	w, _ := env.request(t, http.MethodGet, "/api/download/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Illegal characters.
	w, _ = env.request(t, http.MethodGet, "/api/download/key%20with%20spaces", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadCancelledPurchaseKeyless(t *testing.T) {
	env := newTestEnv(t)

	// A pending purchase has no key yet; any guess must 404.
	_, resp := env.request(t, http.MethodPost, "/api/payments", map[string]interface{}{
		"email":      "buyer@example.com",
		"product_id": "guardian_basic",
	}, nil)
	reference := dataField(t, resp, "payment_id").(string)

	w, _ := env.request(t, http.MethodGet, "/api/download/"+reference, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
