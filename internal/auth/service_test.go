package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/havenlink/havenlink/internal/shared"
)

type memRepo struct {
	byEmail map[string]*Identity
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{byEmail: map[string]*Identity{}}
}

func (m *memRepo) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	id, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return id, nil
}

func (m *memRepo) Create(ctx context.Context, email, passwordHash string) (*Identity, error) {
	if _, ok := m.byEmail[email]; ok {
		return nil, shared.ErrConflict
	}
	m.nextID++
	id := &Identity{ID: m.nextID, Email: email, PasswordHash: passwordHash, IsActive: true}
	m.byEmail[email] = id
	return id, nil
}

func (m *memRepo) CreateSession(ctx context.Context, id string, identityID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (m *memRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	created, err := svc.Register(context.Background(), " Dana@Example.ORG ", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "dana@example.org", created.Email)
	require.NotEqual(t, "correct horse battery", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse battery")))

	id, err := svc.Authenticate(context.Background(), "dana@example.org", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, created.ID, id.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemRepo())
	var verr *shared.ValidationError

	_, err := svc.Register(context.Background(), "nope", "correct horse battery")
	require.ErrorAs(t, err, &verr)

	_, err = svc.Register(context.Background(), "dana@example.org", "short")
	require.ErrorAs(t, err, &verr)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Register(context.Background(), "dana@example.org", "correct horse battery")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "Dana@example.org", "correct horse battery")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestAuthenticateFailuresCollapse(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	_, err := svc.Register(context.Background(), "dana@example.org", "correct horse battery")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "nobody@example.org", "correct horse battery")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "dana@example.org", "wrong password")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	repo.byEmail["dana@example.org"].IsActive = false
	_, err = svc.Authenticate(context.Background(), "dana@example.org", "correct horse battery")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
