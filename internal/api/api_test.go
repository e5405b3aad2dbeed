package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"guardian-api/internal/catalog"
	"guardian-api/internal/config"
	"guardian-api/internal/response"
	"guardian-api/internal/services"
	"guardian-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := fmt.Sprintf("api_test_%d", atomic.AddInt64(&testDBCounter, 1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := store.New(db)
	require.NoError(t, s.AutoMigrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeGateway approves everything.
type fakeGateway struct {
	createCalls int64
	finalizeErr error
}

func (f *fakeGateway) CreatePayment(_ context.Context, req services.PaymentRequest) (*services.CreatedPayment, error) {
	n := atomic.AddInt64(&f.createCalls, 1)
	ref := fmt.Sprintf("PAY-test-%d", n)
	return &services.CreatedPayment{
		Reference:   ref,
		ApprovalURL: "https://gateway.example.com/approve/" + ref,
	}, nil
}

func (f *fakeGateway) Finalize(_ context.Context, reference, approvalToken string) error {
	return f.finalizeErr
}

type fakeMailer struct {
	sends int
	fail  bool
}

func (f *fakeMailer) Send(to, subject, body string, isHTML bool) error {
	f.sends++
	if f.fail {
		return fmt.Errorf("smtp connection refused")
	}
	return nil
}

type testEnv struct {
	engine  *gin.Engine
	store   *store.Store
	gateway *fakeGateway
	mailer  *fakeMailer
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	productsDir := t.TempDir()
	for _, name := range []string{"guardian_basic.zip", "guardian_pro.zip", "guardian_enterprise.zip"} {
		require.NoError(t, os.WriteFile(filepath.Join(productsDir, name), []byte("test archive "+name), 0o644))
	}

	cfg := &config.Config{
		Port:                   "8080",
		Mode:                   gin.TestMode,
		PublicBaseURL:          "https://shop.example.com",
		ProductsDir:            productsDir,
		DefaultRedemptionLimit: 5,
		AdminAPIKey:            "test-admin-key",
		AdminEmail:             "admin@example.com",
		ServiceName:            "Guardian Store",
		SMTPHost:               "smtp.example.com",
		PayPalClientID:         "client-id",
	}

	st := newTestStore(t)
	cat, err := catalog.New(cfg)
	require.NoError(t, err)

	gw := &fakeGateway{}
	mailer := &fakeMailer{}
	notifier := services.NewNotifier(cfg, mailer)
	notifier.SetRetryPolicy(services.RetryPolicy{Attempts: 2, Delay: 0})

	issuer := services.NewIssuer(st)
	reconciler := services.NewReconciler(st, gw, issuer, cat)
	gate := services.NewGate(st, cat)
	files := services.NewFileStore(cfg)

	server := NewServer(cfg, st, cat, reconciler, gate, notifier, files, nil)
	engine := gin.New()
	server.SetupRoutes(engine)

	return &testEnv{engine: engine, store: st, gateway: gw, mailer: mailer, cfg: cfg}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp response.Response
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func dataField(t *testing.T, resp response.Response, key string) interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "response data is not an object: %v", resp.Data)
	return data[key]
}

// buyPurchase drives create + execute and returns the activation key.
func (e *testEnv) buyPurchase(t *testing.T, email, productID string) (reference, key string) {
	t.Helper()
	w, resp := e.request(t, http.MethodPost, "/api/payments", gin.H{
		"email":      email,
		"product_id": productID,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reference = dataField(t, resp, "payment_id").(string)

	w, resp = e.request(t, http.MethodPost, "/api/payments/execute", gin.H{
		"payment_id": reference,
		"payer_id":   "PAYER-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key = dataField(t, resp, "activation_key").(string)
	return reference, key
}
