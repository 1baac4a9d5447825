package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type stubOverrider struct {
	tier      string
	err       error
	accountID uint
	plan      string
	calls     int
}

func (s *stubOverrider) OverridePlan(_ context.Context, accountID uint, plan string) (string, error) {
	s.calls++
	s.accountID = accountID
	s.plan = plan
	return s.tier, s.err
}

func newAdminApp(t *testing.T, overrider *stubOverrider) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	app := fiber.New()
	ac := NewAdminController(gdb, overrider)
	app.Post("/admin/accounts/:id/plan", ac.HandleOverridePlan)
	return app, mock
}

func expectAccountRow(mock sqlmock.Sqlmock, id uint) {
	mock.ExpectQuery("SELECT \\* FROM `accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tier", "status"}).
			AddRow(id, "free", "active"))
}

func overrideRequest(plan string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/accounts/42/plan",
		strings.NewReader(`{"plan":"`+plan+`"}`))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAdminOverridePlanGoesThroughReconciler(t *testing.T) {
	overrider := &stubOverrider{tier: "starter"}
	app, mock := newAdminApp(t, overrider)
	expectAccountRow(mock, 42)

	resp, err := app.Test(overrideRequest("starter"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The tier write is delegated; the controller itself never issues an
	// UPDATE on accounts.
	assert.Equal(t, 1, overrider.calls)
	assert.Equal(t, uint(42), overrider.accountID)
	assert.Equal(t, "starter", overrider.plan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminOverridePlanRejectsUnknownPlan(t *testing.T) {
	overrider := &stubOverrider{tier: "free"}
	app, mock := newAdminApp(t, overrider)
	expectAccountRow(mock, 42)

	resp, err := app.Test(overrideRequest("enterprise_beta"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, overrider.calls)
}

func TestAdminOverridePlanUnknownAccount(t *testing.T) {
	overrider := &stubOverrider{tier: "free"}
	app, mock := newAdminApp(t, overrider)
	mock.ExpectQuery("SELECT \\* FROM `accounts`").
		WillReturnError(gorm.ErrRecordNotFound)

	resp, err := app.Test(overrideRequest("starter"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, overrider.calls)
}
