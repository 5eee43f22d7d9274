package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/config"
	"feedsync/internal/encryption"
	"feedsync/internal/feed"
	"feedsync/internal/model"
	"feedsync/internal/testutil"
)

func signedToken(t *testing.T, claims gojwt.MapClaims) string {
	t.Helper()
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

type callback struct {
	user *model.User
	err  error
}

func record(p *Provider) (*[]callback, func()) {
	var calls []callback
	unsub := p.Subscribe(func(u *model.User, err error) {
		calls = append(calls, callback{u, err})
	})
	return &calls, unsub
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		claims  gojwt.MapClaims
		want    Claims
		wantErr bool
	}{
		{
			name:   "firebase style",
			claims: gojwt.MapClaims{"user_id": "u1", "sub": "ignored", "email": "a@example.com", "exp": exp.Unix()},
			want:   Claims{UserID: "u1", Email: "a@example.com", ExpiresAt: exp},
		},
		{
			name:   "sub and name",
			claims: gojwt.MapClaims{"sub": "u2", "name": "Alice"},
			want:   Claims{UserID: "u2", Email: "Alice"},
		},
		{
			name:    "no user id",
			claims:  gojwt.MapClaims{"email": "a@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClaims(signedToken(t, tt.claims))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.UserID, got.UserID)
			assert.Equal(t, tt.want.Email, got.Email)
			assert.True(t, tt.want.ExpiresAt.Equal(got.ExpiresAt), "ExpiresAt = %v, want %v", got.ExpiresAt, tt.want.ExpiresAt)
		})
	}

	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestProvider_SubscribeReportsCurrentState(t *testing.T) {
	clock := testutil.FixedClock()
	p := NewMemoryProvider(clock, feed.NewNopLogger())

	calls, unsub := record(p)
	defer unsub()

	require.Len(t, *calls, 1)
	assert.Nil(t, (*calls)[0].user)
	assert.NoError(t, (*calls)[0].err)
}

func TestProvider_SignInSignOut(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	p := NewMemoryProvider(clock, feed.NewNopLogger())
	calls, unsub := record(p)
	defer unsub()

	token := signedToken(t, gojwt.MapClaims{"user_id": "u1", "email": "a@example.com", "exp": clock.Now().Add(time.Hour).Unix()})

	user, err := p.SignIn(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, &model.User{ID: "u1", Email: "a@example.com"}, user)
	require.Len(t, *calls, 2)
	assert.Equal(t, user, (*calls)[1].user)

	got, err := p.Token(ctx, *user)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	_, err = p.Token(ctx, model.User{ID: "someone-else"})
	assert.Error(t, err)

	require.NoError(t, p.SignOut(ctx))
	require.Len(t, *calls, 3)
	assert.Nil(t, (*calls)[2].user)

	_, err = p.Token(ctx, *user)
	assert.Error(t, err)
}

func TestProvider_RejectsExpiredToken(t *testing.T) {
	clock := testutil.FixedClock()
	p := NewMemoryProvider(clock, feed.NewNopLogger())

	token := signedToken(t, gojwt.MapClaims{"user_id": "u1", "exp": clock.Now().Add(-time.Minute).Unix()})
	_, err := p.SignIn(context.Background(), token)
	assert.True(t, errors.Is(err, ErrExpired), "SignIn() error = %v, want ErrExpired", err)
}

func TestProvider_TokenExpiresAfterSignIn(t *testing.T) {
	ctx := context.Background()
	clock := testutil.FixedClock()
	p := NewMemoryProvider(clock, feed.NewNopLogger())

	token := signedToken(t, gojwt.MapClaims{"user_id": "u1", "exp": clock.Now().Add(time.Hour).Unix()})
	user, err := p.SignIn(ctx, token)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = p.Token(ctx, *user)
	assert.ErrorIs(t, err, ErrExpired)

	calls, unsub := record(p)
	defer unsub()
	require.Len(t, *calls, 1)
	assert.Nil(t, (*calls)[0].user)
	assert.ErrorIs(t, (*calls)[0].err, ErrExpired)
}

func TestFileProvider_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clock := testutil.FixedClock()
	sealer := encryption.NewAgeSealer(config.SealerConfig{IdentityPath: filepath.Join(dir, "keys", "feedsync.key")})
	path := filepath.Join(dir, "session", "token.age")

	token := signedToken(t, gojwt.MapClaims{"user_id": "u1", "email": "a@example.com"})

	first := NewFileProvider(path, sealer, clock, feed.NewNopLogger())
	_, err := first.SignIn(ctx, token)
	require.NoError(t, err)

	second := NewFileProvider(path, sealer, clock, feed.NewNopLogger())
	calls, unsub := record(second)
	defer unsub()
	require.Len(t, *calls, 1)
	require.NotNil(t, (*calls)[0].user)
	assert.Equal(t, "u1", (*calls)[0].user.ID)

	got, err := second.Token(ctx, model.User{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, token, got)

	require.NoError(t, second.SignOut(ctx))
	require.NoError(t, second.SignOut(ctx), "signing out twice")

	third := NewFileProvider(path, sealer, clock, feed.NewNopLogger())
	calls, unsub2 := record(third)
	defer unsub2()
	assert.Nil(t, (*calls)[0].user)
}

func TestNewProviderFromConfig(t *testing.T) {
	clock := testutil.FixedClock()
	tests := []struct {
		name    string
		cfg     config.SessionConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.SessionConfig{Type: "memory"}},
		{name: "file", cfg: config.SessionConfig{Type: "file", TokenPath: "/tmp/t", Sealer: config.SealerConfig{Type: "none"}}},
		{name: "file without path", cfg: config.SessionConfig{Type: "file"}, wantErr: true},
		{name: "bad sealer", cfg: config.SessionConfig{Type: "file", TokenPath: "/tmp/t", Sealer: config.SealerConfig{Type: "xor"}}, wantErr: true},
		{name: "unknown", cfg: config.SessionConfig{Type: "oauth"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProviderFromConfig(tt.cfg, clock, feed.NewNopLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}
