package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	refreshtokensrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// --- helpers ---

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

type fixture struct {
	svc   *UserService
	rm    repomanager.RepositoryManager
	codec *auth.Codec
	clock *fakeClock
}

func newCodec(t *testing.T, clock *fakeClock) *auth.Codec {
	t.Helper()
	c, err := auth.NewCodec("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func newHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(bcrypt.MinCost, 4)
	require.NoError(t, err)
	return h
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Now()}
	codec := newCodec(t, clock)
	rm := repomanager.NewInMemoryRepositoryManager()
	return &fixture{
		svc:   NewUserService(rm, codec, newHasher(t), logging.Nop{}),
		rm:    rm,
		codec: codec,
		clock: clock,
	}
}

func (f *fixture) register(t *testing.T, email, pw string) *Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: pw})
	require.NoError(t, err)
	return s
}

func strptr(s string) *string { return &s }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Register(ctx, RegisterInput{
		Email:     "alice@example.com",
		Password:  "pw123456",
		FirstName: strptr("Alice"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, s.User.ID)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.Equal(t, "Alice", *s.User.FirstName)
	assert.Nil(t, s.User.LastName)
	assert.True(t, s.User.IsActive)

	access, err := f.codec.VerifyAccessToken(s.AccessToken.Value)
	require.NoError(t, err)
	assert.Equal(t, auth.AccessPayload{UserID: s.User.ID, Email: "alice@example.com"}, access)

	refresh, err := f.codec.VerifyRefreshToken(s.RefreshToken.Value)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, refresh.UserID)
	assert.NotEmpty(t, refresh.TokenID)

	rec, err := f.rm.RefreshTokens(f.rm.Conn()).FindWithOwner(ctx, s.RefreshToken.Value)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(s.RefreshToken.ExpiresAt))

	stored, err := f.rm.Users(f.rm.Conn()).GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw123456")))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	for _, in := range []RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "a@x.io", Password: ""},
		{},
	} {
		_, err := f.svc.Register(context.Background(), in)
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Equal(t, common.KindValidation, common.KindOf(err))
	}

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: strings.Repeat("p", 73)})
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestRegister_Conflict(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.io", "pw")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "other"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)
	assert.Equal(t, common.KindConflict, common.KindOf(err))
}

func TestRegister_EmailIsCaseSensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.io", "pw")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "A@x.io", Password: "pw"})
	assert.NoError(t, err)
}

// The pre-insert lookup misses, then the insert loses to a concurrent
// registration: the loser must see Conflict and nothing is committed.
func TestRegister_RaceOnInsertYieldsConflict(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	clock := &fakeClock{t: time.Now()}
	rm := repomanager.NewPostgresRepositoryManagerWithDB(db)
	svc := NewUserService(rm, newCodec(t, clock), newHasher(t), logging.Nop{})

	mock.ExpectQuery(`SELECT .* FROM users\s+WHERE email = \$1`).
		WithArgs("a@x.io").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_TokenInsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	clock := &fakeClock{t: time.Now()}
	rm := repomanager.NewPostgresRepositoryManagerWithDB(db)
	svc := NewUserService(rm, newCodec(t, clock), newHasher(t), logging.Nop{})

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM users\s+WHERE email = \$1`).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).AddRow("u-1", true, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@x.io", Password: "pw"})
	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.Equal(t, common.ErrorInternal, common.Public(err), "detail must not reach clients")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "alice@example.com", "pw123456")

	s, err := f.svc.Login(context.Background(), "alice@example.com", "pw123456")
	require.NoError(t, err)

	assert.Equal(t, reg.User.ID, s.User.ID)
	assert.NotEqual(t, reg.AccessToken.Value, s.AccessToken.Value)
	assert.NotEqual(t, reg.RefreshToken.Value, s.RefreshToken.Value)

	// both sessions are live
	for _, tok := range []string{reg.RefreshToken.Value, s.RefreshToken.Value} {
		_, err := f.rm.RefreshTokens(f.rm.Conn()).FindWithOwner(context.Background(), tok)
		assert.NoError(t, err)
	}
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.io", "right")

	_, errUnknown := f.svc.Login(context.Background(), "ghost@x.io", "right")
	_, errWrong := f.svc.Login(context.Background(), "a@x.io", "wrong")

	assert.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.Equal(t, "invalid email or password", errWrong.Error())
}

func TestLogin_SuffixPastBcryptLimitIsRejected(t *testing.T) {
	f := newFixture(t)
	pw := strings.Repeat("a", 72)
	f.register(t, "a@x.io", pw)

	_, err := f.svc.Login(context.Background(), "a@x.io", pw+"EXTRA-GARBAGE")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "ghost@x.io", pw+"EXTRA-GARBAGE")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "a@x.io", pw)
	assert.NoError(t, err)
}

func TestLogin_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = f.svc.Login(context.Background(), "a@x.io", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_Deactivated(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	_, err := f.rm.Users(f.rm.Conn()).SetActive(context.Background(), reg.User.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "a@x.io", "pw")
	assert.ErrorIs(t, err, common.ErrAccountDeactivated)
	assert.Equal(t, common.KindAccountDeactivated, common.KindOf(err))
}

// --- Refresh ---

func TestRefresh_Success_NoRotation(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	f.clock.Advance(time.Minute)
	access, err := f.svc.Refresh(context.Background(), reg.RefreshToken.Value)
	require.NoError(t, err)
	assert.NotEqual(t, reg.AccessToken.Value, access.Value)

	p, err := f.codec.VerifyAccessToken(access.Value)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, p.UserID)
	assert.Equal(t, "a@x.io", p.Email)

	// the same refresh token keeps working
	_, err = f.svc.Refresh(context.Background(), reg.RefreshToken.Value)
	assert.NoError(t, err)
}

func TestRefresh_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrMissingToken)
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
}

func TestRefresh_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	for _, tok := range []string{
		"garbage",
		reg.AccessToken.Value, // signed with the access secret
		reg.RefreshToken.Value + "x",
	} {
		_, err := f.svc.Refresh(context.Background(), tok)
		assert.ErrorIs(t, err, common.ErrInvalidRefreshToken, tok)
	}
}

func TestRefresh_SignedButNotStored(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	forged, err := f.codec.MintRefreshToken(auth.RefreshPayload{UserID: reg.User.ID, TokenID: auth.NewTokenID()})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), forged.Value)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestRefresh_StoredRecordExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.io", "pw")

	// Cryptographically fresh token whose record already lapsed.
	tok, err := f.codec.MintRefreshToken(auth.RefreshPayload{UserID: reg.User.ID, TokenID: auth.NewTokenID()})
	require.NoError(t, err)
	require.NoError(t, f.rm.RefreshTokens(f.rm.Conn()).Create(ctx, reg.User.ID, tok.Value, f.clock.Now().Add(-time.Second)))

	_, err = f.svc.Refresh(ctx, tok.Value)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestRefresh_SignatureExpired(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err := f.svc.Refresh(context.Background(), reg.RefreshToken.Value)
	assert.ErrorIs(t, err, common.ErrInvalidRefreshToken)
}

func TestRefresh_Deactivated(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	_, err := f.rm.Users(f.rm.Conn()).SetActive(context.Background(), reg.User.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), reg.RefreshToken.Value)
	assert.ErrorIs(t, err, common.ErrAccountDeactivated)
}

func TestRefresh_OwnerDeleted(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "a@x.io", "pw")

	_, err := f.rm.Users(f.rm.Conn()).Delete(context.Background(), reg.User.ID)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), reg.RefreshToken.Value)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

// --- Logout ---

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.io", "pw")

	require.NoError(t, f.svc.Logout(ctx, reg.RefreshToken.Value))
	require.NoError(t, f.svc.Logout(ctx, reg.RefreshToken.Value))
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err := f.svc.Refresh(ctx, reg.RefreshToken.Value)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}

func TestLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.io", "pw")
	login, err := f.svc.Login(ctx, "a@x.io", "pw")
	require.NoError(t, err)
	other := f.register(t, "b@x.io", "pw")

	n, err := f.svc.LogoutAll(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, tok := range []string{reg.RefreshToken.Value, login.RefreshToken.Value} {
		_, err := f.svc.Refresh(ctx, tok)
		assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	}
	_, err = f.svc.Refresh(ctx, other.RefreshToken.Value)
	assert.NoError(t, err, "other users keep their sessions")
}

// --- Profile ---

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@x.io", "pw")

	p, err := f.svc.Profile(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.User, p)

	_, err = f.rm.Users(f.rm.Conn()).Delete(ctx, reg.User.ID)
	require.NoError(t, err)

	_, err = f.svc.Profile(ctx, reg.User.ID)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

// --- store failures ---

type failingUsers struct{ err error }

func (f failingUsers) Create(context.Context, *models.User) (*models.User, error) { return nil, f.err }
func (f failingUsers) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, f.err
}
func (f failingUsers) GetUserByID(context.Context, string) (*models.User, error) { return nil, f.err }
func (f failingUsers) SetActive(context.Context, string, bool) (int64, error)   { return 0, f.err }
func (f failingUsers) Delete(context.Context, string) (int64, error)            { return 0, f.err }

type failingTokens struct{ err error }

func (f failingTokens) Create(context.Context, string, string, time.Time) error { return f.err }
func (f failingTokens) FindWithOwner(context.Context, string) (*models.RefreshTokenWithOwner, error) {
	return nil, f.err
}
func (f failingTokens) Delete(context.Context, string) (int64, error)           { return 0, f.err }
func (f failingTokens) DeleteAllForUser(context.Context, string) (int64, error) { return 0, f.err }

type fakeRepoManager struct {
	u usersrepo.Repository
	r refreshtokensrepo.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context) error { return nil }
func (m *fakeRepoManager) Ping(context.Context) error          { return nil }
func (m *fakeRepoManager) Conn() dbx.DBTX                      { return nil }
func (m *fakeRepoManager) Close() error                        { return nil }
func (m *fakeRepoManager) WithTx(ctx context.Context, fn func(context.Context, dbx.DBTX) error) error {
	return fn(ctx, nil)
}
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// usersOnly serves lookups from a real repository.
type usersOnly struct{ usersrepo.Repository }

func TestLogin_UserDeletedBeforeSessionInsert(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.io", "pw")

	rm := &fakeRepoManager{
		u: usersOnly{f.rm.Users(f.rm.Conn())},
		r: failingTokens{err: fmt.Errorf("%w: refresh token owner", common.ErrorNotFound)},
	}
	svc := NewUserService(rm, f.codec, newHasher(t), logging.Nop{})

	_, err := svc.Login(context.Background(), "a@x.io", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, common.KindInvalidCredentials, common.KindOf(err))
}

func TestStoreFailuresAreInternal(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newCodec(t, clock)
	boom := errors.New("connection reset by peer")
	rm := &fakeRepoManager{u: failingUsers{err: boom}, r: failingTokens{err: boom}}
	svc := NewUserService(rm, codec, newHasher(t), logging.Nop{})
	ctx := context.Background()

	refresh, err := codec.MintRefreshToken(auth.RefreshPayload{UserID: "u1", TokenID: "t"})
	require.NoError(t, err)

	_, err1 := svc.Register(ctx, RegisterInput{Email: "a@x.io", Password: "pw"})
	_, err2 := svc.Login(ctx, "a@x.io", "pw")
	_, err3 := svc.Refresh(ctx, refresh.Value)
	err4 := svc.Logout(ctx, "tok")
	_, err5 := svc.LogoutAll(ctx, "u1")
	_, err6 := svc.Profile(ctx, "u1")

	for i, err := range []error{err1, err2, err3, err4, err5, err6} {
		require.Error(t, err, i)
		assert.ErrorIs(t, err, boom, "detail kept for logs")
		assert.Equal(t, common.KindInternal, common.KindOf(err), i)
		assert.NotContains(t, common.Public(err).Message, "connection reset", i)
	}
}

// --- end to end ---

func TestScenario_RegisterLoginRefreshLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "pw123456"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.AccessToken.Value)

	login, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, reg.AccessToken.Value, login.AccessToken.Value)
	_, err = f.rm.RefreshTokens(f.rm.Conn()).FindWithOwner(ctx, login.RefreshToken.Value)
	require.NoError(t, err, "login persists a new refresh-token record")

	access, err := f.svc.Refresh(ctx, login.RefreshToken.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, access.Value)
	_, err = f.svc.Refresh(ctx, login.RefreshToken.Value)
	require.NoError(t, err, "refresh token remains valid after use")

	_, err = f.svc.LogoutAll(ctx, login.User.ID)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.RefreshToken.Value)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
}
