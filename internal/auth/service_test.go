package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/auth"
	"github.com/oakmart/storefront-api/internal/common"
	"github.com/oakmart/storefront-api/internal/repo"
)

type fakeUsers struct {
	byEmail map[string]repo.User
	byID    map[uuid.UUID]repo.User
	tokens  map[string]repo.RefreshToken
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail: map[string]repo.User{},
		byID:    map[uuid.UUID]repo.User{},
		tokens:  map[string]repo.RefreshToken{},
	}
}

func (f *fakeUsers) Create(_ context.Context, name, email, passwordHash string) (repo.User, error) {
	if _, exists := f.byEmail[email]; exists {
		return repo.User{}, repo.ErrEmailTaken
	}
	u := repo.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []string{"customer"},
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (repo.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (repo.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) CreateRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	f.tokens[tokenHash] = repo.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeUsers) GetRefreshToken(_ context.Context, tokenHash string, now time.Time) (repo.RefreshToken, error) {
	t, ok := f.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(now) {
		return repo.RefreshToken{}, repo.ErrNotFound
	}
	return t, nil
}

func (f *fakeUsers) RevokeRefreshToken(_ context.Context, id uuid.UUID, now time.Time) error {
	for hash, t := range f.tokens {
		if t.ID == id && t.RevokedAt == nil {
			revoked := now
			t.RevokedAt = &revoked
			f.tokens[hash] = t
		}
	}
	return nil
}

func newService(t *testing.T, users *fakeUsers) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{
		Users:           users,
		Secret:          "test-secret-0123456789",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "storefront-api",
		Audience:        "storefront-web",
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Jo", "JO@Example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "jo@example.com", u.Email)
	require.Equal(t, []string{"customer"}, u.Roles)

	_, err = svc.Register(ctx, "Jo Again", "jo@example.com", "hunter2hunter2")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)

	result, err := svc.Login(ctx, "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	identity, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, identity.UserID)
	require.Equal(t, []string{"customer"}, identity.Roles)
}

func TestLoginWrongPassword(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Jo", "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "jo@example.com", "wrong-password")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Jo", "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })
	result, err := svc.Login(ctx, "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return issued.Add(time.Hour) })
	_, err = svc.ParseAccessToken(result.AccessToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Jo", "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old refresh token is revoked after rotation
	_, err = svc.Refresh(ctx, login.RefreshToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)

	// the new one still works
	_, err = svc.Refresh(ctx, refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	users := newFakeUsers()
	svc := newService(t, users)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Jo", "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)
	login, err := svc.Login(ctx, "jo@example.com", "hunter2hunter2")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, login.RefreshToken))

	_, err = svc.Refresh(ctx, login.RefreshToken)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)

	// logging out twice is harmless
	require.NoError(t, svc.Logout(ctx, login.RefreshToken))
}
