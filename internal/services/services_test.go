package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"guardian-api/internal/catalog"
	"guardian-api/internal/config"
	"guardian-api/internal/store"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := fmt.Sprintf("services_test_%d", atomic.AddInt64(&testDBCounter, 1))
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

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(&config.Config{DefaultRedemptionLimit: 5})
	require.NoError(t, err)
	return cat
}

// fakeGateway is an in-memory PaymentGateway. Finalize failures and hooks are
// settable per test.
type fakeGateway struct {
	createCalls   int
	finalizeCalls int
	createErr     error
	finalizeErr   error
	beforeResult  func() // runs after Finalize succeeds, before it returns
	lastRequest   PaymentRequest
}

func (f *fakeGateway) CreatePayment(_ context.Context, req PaymentRequest) (*CreatedPayment, error) {
	f.createCalls++
	f.lastRequest = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	ref := fmt.Sprintf("PAY-fake-%d", f.createCalls)
	return &CreatedPayment{
		Reference:   ref,
		ApprovalURL: "https://gateway.example.com/approve/" + ref,
	}, nil
}

func (f *fakeGateway) Finalize(_ context.Context, reference, approvalToken string) error {
	f.finalizeCalls++
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	if f.beforeResult != nil {
		f.beforeResult()
	}
	return nil
}

// fakeMailer records sends and fails the first failCount calls.
type fakeMailer struct {
	sends     int
	failCount int
	lastTo    string
	lastBody  string
}

var errMailerDown = errors.New("smtp connection refused")

func (f *fakeMailer) Send(to, subject, body string, isHTML bool) error {
	f.sends++
	if f.sends <= f.failCount {
		return errMailerDown
	}
	f.lastTo = to
	f.lastBody = body
	return nil
}
