package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevera/nevera_server/internal/testutil"
)

func TestUserRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	_ = NewUserRepository(db)

	user := testutil.TestUser(t, db, testutil.WithPhone("34600123456"))

	assert.NotZero(t, user.ID)
	assert.Equal(t, "34600123456", user.Phone)
}

func TestUserRepository_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	created := testutil.TestUser(t, db)

	found, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Phone, found.Phone)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	_, err := repo.GetByID(99999)
	assert.Error(t, err)
}

func TestUserRepository_GetOrCreateByPhone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	created, err := repo.GetOrCreateByPhone("34611222333", "Ana")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Ana", created.Name)

	// Same phone returns the same row, name is not overwritten.
	again, err := repo.GetOrCreateByPhone("34611222333", "Other Name")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Ana", again.Name)
}

func TestUserRepository_TouchActivity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	stale := time.Now().AddDate(0, 0, -30)
	user := testutil.TestUser(t, db, testutil.WithLastActive(stale))

	require.NoError(t, repo.TouchActivity(user.ID))

	found, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), found.LastActiveAt, 5*time.Second)
}

func TestUserRepository_ListActiveSince(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	recent := testutil.TestUser(t, db, testutil.WithLastActive(time.Now().AddDate(0, 0, -1)))
	testutil.TestUser(t, db, testutil.WithLastActive(time.Now().AddDate(0, 0, -30)))

	users, err := repo.ListActiveSince(time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, recent.ID, users[0].ID)
}

func TestUserRepository_Deactivate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	user := testutil.TestUser(t, db)
	require.NoError(t, repo.Deactivate(user.ID))

	users, err := repo.ListActive()
	require.NoError(t, err)
	assert.Empty(t, users)
}
