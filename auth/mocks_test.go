package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/juanxtache-cmyk/gameorki-backend/auth"
)

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	args := m.Called()
	return args.String(0)
}

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	mockConfig.On("GetContextKey").Return(auth.DefaultContextKey)
	mockConfig.On("GetAuthScheme").Return(auth.BearerScheme)
	return mockConfig
}

// memoryUsers is an in-memory credential store. Reads hand out copies so
// handler mutations only become visible once a Save method runs, mirroring
// the store's single-write contract.
type memoryUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*auth.User
	failErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: map[uuid.UUID]*auth.User{}}
}

var _ auth.Users = (*memoryUsers)(nil)

func (s *memoryUsers) get(match func(*auth.User) bool) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return nil, s.failErr
	}

	for _, record := range s.records {
		if match(record) {
			clone := *record
			return &clone, nil
		}
	}

	return nil, repository.NewRecordNotFound()
}

func (s *memoryUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound()
	}
	return s.get(func(u *auth.User) bool { return u.ID == uid })
}

func (s *memoryUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	if record, err := s.GetByEmail(ctx, identifier); err == nil {
		return record, nil
	}
	return s.get(func(u *auth.User) bool { return u.Username == identifier })
}

func (s *memoryUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	return s.GetByIdentifier(ctx, identifier)
}

func (s *memoryUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.get(func(u *auth.User) bool { return u.Email == email })
}

func (s *memoryUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	return s.GetByEmail(ctx, email)
}

func (s *memoryUsers) GetByResetTokenHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*auth.User, error) {
	return s.get(func(u *auth.User) bool { return u.Recovery.TokenHash == tokenHash })
}

func (s *memoryUsers) ExistsWithIdentityTx(ctx context.Context, tx bun.IDB, username, email string) (bool, error) {
	_, err := s.get(func(u *auth.User) bool {
		return u.Username == username || u.Email == email
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *memoryUsers) Create(ctx context.Context, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return nil, s.failErr
	}

	record.EnsureRole()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Recovery.Stage == "" {
		record.Recovery.Stage = auth.RecoveryStageNone
	}

	for _, existing := range s.records {
		if existing.Username == record.Username || existing.Email == record.Email {
			return nil, fmt.Errorf("UNIQUE constraint failed: users.username")
		}
	}

	clone := *record
	s.records[record.ID] = &clone

	return record, nil
}

func (s *memoryUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	return s.Create(ctx, record, criteria...)
}

func (s *memoryUsers) SaveRecoveryTx(ctx context.Context, tx bun.IDB, record *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[record.ID]
	if !ok {
		return repository.NewRecordNotFound()
	}

	stored.Recovery = record.Recovery
	return nil
}

func (s *memoryUsers) SaveCredentialsTx(ctx context.Context, tx bun.IDB, record *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[record.ID]
	if !ok {
		return repository.NewRecordNotFound()
	}

	stored.PasswordHash = record.PasswordHash
	stored.Recovery = record.Recovery
	return nil
}

// stored returns the persisted record, bypassing the copy semantics.
func (s *memoryUsers) stored(id uuid.UUID) *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

// fakeRepoManager wires the in-memory store behind the RepositoryManager
// surface. RunInTx just invokes the callback; the fake store has no
// transactions to speak of.
type fakeRepoManager struct {
	users *memoryUsers
}

var _ auth.RepositoryManager = (*fakeRepoManager)(nil)

func newFakeRepoManager() (*fakeRepoManager, *memoryUsers) {
	store := newMemoryUsers()
	return &fakeRepoManager{users: store}, store
}

func (m *fakeRepoManager) Validate() error { return nil }

func (m *fakeRepoManager) MustValidate() {}

func (m *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

func (m *fakeRepoManager) Users() auth.Users {
	return m.users
}

type sentMail struct {
	to   string
	code string
}

// recordingMailer captures deliveries and can be told to fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

var _ auth.Mailer = (*recordingMailer)(nil)

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.sent = append(m.sent, sentMail{to: to, code: code})
	return nil
}

func (m *recordingMailer) deliveries() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// captureLogger records log lines per level.
type captureLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

var _ auth.Logger = (*captureLogger)(nil)

func newCaptureLogger() *captureLogger {
	return &captureLogger{lines: map[string][]string{}}
}

func (l *captureLogger) log(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines[level] = append(l.lines[level], fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.log("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.log("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log("error", format, args...) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines[level])
}

func seedUser(t *testing.T, store *memoryUsers, username, email, password string, role auth.UserRole) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := store.Create(context.Background(), &auth.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)

	return user
}
