package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nevera/nevera_server/internal/pkg/jwt"
	"github.com/nevera/nevera_server/internal/repository"
	"github.com/nevera/nevera_server/internal/testutil"
)

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

type authFixture struct {
	svc    *AuthService
	db     *gorm.DB
	sender *fakeSender
	secret string
}

func setupAuthService(t *testing.T) *authFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb := testutil.SetupTestRedis(t)

	cfg := testConfig()
	cfg.JWT.Secret = "test-secret"
	sender := &fakeSender{}
	svc := NewAuthService(repository.NewUserRepository(db), rdb, sender, cfg, testLogger())

	return &authFixture{svc: svc, db: db, sender: sender, secret: cfg.JWT.Secret}
}

// sentCode digs the six digit code out of the delivered message.
func (f *authFixture) sentCode(t *testing.T) string {
	t.Helper()
	sent := f.sender.messages()
	require.NotEmpty(t, sent)
	m := codeRe.FindStringSubmatch(sent[len(sent)-1].Text)
	require.NotNil(t, m, "no code in message: %s", sent[len(sent)-1].Text)
	return m[1]
}

func TestAuthService_LinkAndVerify(t *testing.T) {
	f := setupAuthService(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	require.NoError(t, f.svc.SendLinkCode(ctx, user.Phone))

	sent := f.sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, user.Phone, sent[0].Phone)
	assert.Contains(t, sent[0].Text, "panel web")

	token, err := f.svc.Verify(ctx, user.Phone, f.sentCode(t))
	require.NoError(t, err)

	claims, err := jwt.ParseToken(token, f.secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestAuthService_UnknownPhone(t *testing.T) {
	f := setupAuthService(t)

	err := f.svc.SendLinkCode(context.Background(), "34600999999")
	assert.ErrorIs(t, err, ErrUnknownPhone)
	assert.Empty(t, f.sender.messages())
}

func TestAuthService_WrongCode(t *testing.T) {
	f := setupAuthService(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	require.NoError(t, f.svc.SendLinkCode(ctx, user.Phone))

	wrong := "000000"
	if f.sentCode(t) == wrong {
		wrong = "111111"
	}
	_, err := f.svc.Verify(ctx, user.Phone, wrong)
	assert.ErrorIs(t, err, ErrBadLoginCode)
}

func TestAuthService_CodeIsSingleUse(t *testing.T) {
	f := setupAuthService(t)
	ctx := context.Background()

	user := testutil.TestUser(t, f.db)
	require.NoError(t, f.svc.SendLinkCode(ctx, user.Phone))
	code := f.sentCode(t)

	_, err := f.svc.Verify(ctx, user.Phone, code)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, user.Phone, code)
	assert.ErrorIs(t, err, ErrBadLoginCode)
}

func TestAuthService_VerifyWithoutCode(t *testing.T) {
	f := setupAuthService(t)

	user := testutil.TestUser(t, f.db)
	_, err := f.svc.Verify(context.Background(), user.Phone, "123456")
	assert.ErrorIs(t, err, ErrBadLoginCode)
}
