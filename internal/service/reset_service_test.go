package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
	"github.com/twoem/portal-api/pkg/mail"
)

type mockResetRepo struct {
	resets map[string]models.PasswordResetRequest
}

func (m *mockResetRepo) Create(ctx context.Context, req *models.PasswordResetRequest) error {
	if m.resets == nil {
		m.resets = make(map[string]models.PasswordResetRequest)
	}
	m.resets[req.ID] = *req
	return nil
}

func (m *mockResetRepo) FindByID(ctx context.Context, id string) (*models.PasswordResetRequest, error) {
	if r, ok := m.resets[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResetRepo) List(ctx context.Context, status models.ResetStatus) ([]models.PasswordResetRequest, error) {
	var out []models.PasswordResetRequest
	for _, r := range m.resets {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockResetRepo) Approve(ctx context.Context, id, code string, decidedAt, expiresAt time.Time) error {
	r, ok := m.resets[id]
	if !ok || r.Status != models.ResetPending {
		return sql.ErrNoRows
	}
	r.Status = models.ResetApproved
	r.ResetCode = code
	r.DecidedAt = &decidedAt
	r.ExpiresAt = &expiresAt
	m.resets[id] = r
	return nil
}

func (m *mockResetRepo) Reject(ctx context.Context, id string, decidedAt time.Time) error {
	r, ok := m.resets[id]
	if !ok || r.Status != models.ResetPending {
		return sql.ErrNoRows
	}
	r.Status = models.ResetRejected
	r.DecidedAt = &decidedAt
	m.resets[id] = r
	return nil
}

func (m *mockResetRepo) FindApproved(ctx context.Context, email, code string) (*models.PasswordResetRequest, error) {
	for _, r := range m.resets {
		if r.Email == email && r.ResetCode == code && r.Status == models.ResetApproved {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockResetRepo) MarkUsed(ctx context.Context, id string) error {
	r, ok := m.resets[id]
	if !ok || r.Status != models.ResetApproved {
		return sql.ErrNoRows
	}
	r.Status = models.ResetUsed
	m.resets[id] = r
	return nil
}

type mockResetUserRepo struct {
	users     map[string]models.User
	passwords map[string]string
}

func (m *mockResetUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockResetUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

type recordingSender struct {
	sent []mail.Message
}

func (r *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func newResetService(resets *mockResetRepo, users *mockResetUserRepo, sender *recordingSender) *ResetService {
	return NewResetService(resets, users, sender, NewExpiryPolicy(3, 24*time.Hour), 6, nil, nil)
}

func seedUser() *mockResetUserRepo {
	return &mockResetUserRepo{users: map[string]models.User{
		"user-1": {ID: "user-1", Email: "jane@example.com", Active: true},
	}}
}

func TestResetRequestCreatesPending(t *testing.T) {
	resets := &mockResetRepo{}
	svc := newResetService(resets, seedUser(), &recordingSender{})

	err := svc.Request(context.Background(), models.RequestResetRequest{Email: "jane@example.com"})

	require.NoError(t, err)
	require.Len(t, resets.resets, 1)
	for _, r := range resets.resets {
		assert.Equal(t, models.ResetPending, r.Status)
		assert.Empty(t, r.ResetCode, "code must not exist before approval")
		assert.Nil(t, r.ExpiresAt)
	}
}

func TestResetRequestUnknownEmailIsSilent(t *testing.T) {
	resets := &mockResetRepo{}
	svc := newResetService(resets, seedUser(), &recordingSender{})

	err := svc.Request(context.Background(), models.RequestResetRequest{Email: "nobody@example.com"})

	require.NoError(t, err)
	assert.Empty(t, resets.resets)
}

func TestResetApproveGeneratesCodeAndMails(t *testing.T) {
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {ID: "req-1", UserID: "user-1", Email: "jane@example.com", Status: models.ResetPending},
	}}
	sender := &recordingSender{}
	svc := newResetService(resets, seedUser(), sender)

	approved, err := svc.Approve(context.Background(), "req-1")

	require.NoError(t, err)
	assert.Equal(t, models.ResetApproved, approved.Status)
	assert.Len(t, approved.ResetCode, 6)
	require.NotNil(t, approved.ExpiresAt)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", sender.sent[0].ToEmail)
	assert.Contains(t, sender.sent[0].Body, approved.ResetCode)
}

func TestResetApproveTwiceConflicts(t *testing.T) {
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {ID: "req-1", UserID: "user-1", Email: "jane@example.com", Status: models.ResetPending},
	}}
	svc := newResetService(resets, seedUser(), &recordingSender{})

	_, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), "req-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestResetRejectLeavesNoCode(t *testing.T) {
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {ID: "req-1", UserID: "user-1", Email: "jane@example.com", Status: models.ResetPending},
	}}
	sender := &recordingSender{}
	svc := newResetService(resets, seedUser(), sender)

	rejected, err := svc.Reject(context.Background(), "req-1")

	require.NoError(t, err)
	assert.Equal(t, models.ResetRejected, rejected.Status)
	assert.Empty(t, rejected.ResetCode)
	assert.Empty(t, sender.sent)
}

func TestResetCompleteConsumesCode(t *testing.T) {
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {ID: "req-1", UserID: "user-1", Email: "jane@example.com", Status: models.ResetPending},
	}}
	users := seedUser()
	svc := newResetService(resets, users, &recordingSender{})

	approved, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)

	err = svc.Complete(context.Background(), models.CompleteResetRequest{
		Email:       "jane@example.com",
		ResetCode:   approved.ResetCode,
		NewPassword: "s3cret-new",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, users.passwords["user-1"])
	assert.Equal(t, models.ResetUsed, resets.resets["req-1"].Status)

	// the code is single use
	err = svc.Complete(context.Background(), models.CompleteResetRequest{
		Email:       "jane@example.com",
		ResetCode:   approved.ResetCode,
		NewPassword: "another-pass",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestResetCompleteExpiredCode(t *testing.T) {
	decidedAt := time.Now().UTC().Add(-48 * time.Hour)
	expiresAt := decidedAt.Add(24 * time.Hour)
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {
			ID:        "req-1",
			UserID:    "user-1",
			Email:     "jane@example.com",
			Status:    models.ResetApproved,
			ResetCode: "123456",
			DecidedAt: &decidedAt,
			ExpiresAt: &expiresAt,
		},
	}}
	svc := newResetService(resets, seedUser(), &recordingSender{})

	err := svc.Complete(context.Background(), models.CompleteResetRequest{
		Email:       "jane@example.com",
		ResetCode:   "123456",
		NewPassword: "s3cret-new",
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrGone.Code, appErr.Code)
}

func TestResetCompleteWrongCode(t *testing.T) {
	resets := &mockResetRepo{resets: map[string]models.PasswordResetRequest{
		"req-1": {ID: "req-1", UserID: "user-1", Email: "jane@example.com", Status: models.ResetPending},
	}}
	svc := newResetService(resets, seedUser(), &recordingSender{})

	_, err := svc.Approve(context.Background(), "req-1")
	require.NoError(t, err)

	err = svc.Complete(context.Background(), models.CompleteResetRequest{
		Email:       "jane@example.com",
		ResetCode:   "000000",
		NewPassword: "s3cret-new",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
