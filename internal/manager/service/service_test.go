package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	"github.com/smallbiznis/usagelens/internal/manager/domain"
	"github.com/smallbiznis/usagelens/internal/manager/repository"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error {
	args := m.Called(ctx, action, targetType, targetID, metadata)
	return args.Error(0)
}

func (m *mockAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newService(t *testing.T) (domain.Service, *mockAudit) {
	t.Helper()
	db := dbtest.New(t, &domain.ManagerRecord{})
	audit := &mockAudit{}
	audit.On("AuditLog", mock.Anything, mock.Anything, "manager", mock.Anything, mock.Anything).Return(nil)
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		AuditSvc: audit,
	})
	return svc, audit
}

func TestUpsertNormalizesAndReplaces(t *testing.T) {
	svc, audit := newService(t)
	ctx := context.Background()

	rec, err := svc.Upsert(ctx, " Alice@X.com ", domain.UpsertRequest{ManagerName: "Bob", Department: "Platform", ManagerEmail: "BOB@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", rec.Email)
	require.NotNil(t, rec.ManagerEmail)
	assert.Equal(t, "bob@x.com", *rec.ManagerEmail)

	_, err = svc.Upsert(ctx, "alice@x.com", domain.UpsertRequest{ManagerName: "Carol", Department: "Data"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.ManagerName)
	assert.Equal(t, "Data", got.Department)
	assert.Nil(t, got.ManagerEmail)

	audit.AssertNumberOfCalls(t, "AuditLog", 2)
}

func TestUpsertRejectsBadEmails(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Upsert(context.Background(), "nobody", domain.UpsertRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Upsert(context.Background(), "a@x.com", domain.UpsertRequest{ManagerEmail: "boss"})
	assert.ErrorIs(t, err, domain.ErrInvalidManagerEmail)
}

func TestDeleteAndNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, "a@x.com", domain.UpsertRequest{Department: "Ops"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "A@X.COM"))
	assert.ErrorIs(t, svc.Delete(ctx, "a@x.com"), domain.ErrNotFound)

	_, err = svc.Get(ctx, "a@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportReplacesRoster(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, "gone@x.com", domain.UpsertRequest{Department: "Old"})
	require.NoError(t, err)

	roster := "Work Email,Manager: Name,Director,Department Name (from Employment),Manager Email\n" +
		"alice@x.com,Bob,Dana,Platform,bob@x.com\n" +
		"not-an-email,Bob,Dana,Platform,\n" +
		"carol@x.com,Bob,Dana,Data,\n" +
		"ALICE@x.com,Eve,Dana,Platform,\n"

	res, err := svc.Import(ctx, strings.NewReader(roster))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].Line)

	list, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Managers, 2)
	assert.Equal(t, "alice@x.com", list.Managers[0].Email)
	assert.Equal(t, "Eve", list.Managers[0].ManagerName)
	assert.Equal(t, "carol@x.com", list.Managers[1].Email)

	byDept, err := svc.List(ctx, domain.ListRequest{Department: "Data"})
	require.NoError(t, err)
	require.Len(t, byDept.Managers, 1)
}

func TestImportRequiresWorkEmail(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Import(context.Background(), strings.NewReader("Email,Director\na@x.com,Dana\n"))

	var schemaErr *ingestdomain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"Work Email"}, schemaErr.MissingColumns)

	_, err = svc.Import(context.Background(), strings.NewReader("Work Email\nbad\n"))
	assert.ErrorIs(t, err, domain.ErrEmptyRoster)
}
