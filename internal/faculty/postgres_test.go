package faculty_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nfcattendance/internal/faculty"
	"nfcattendance/internal/logging"
	"nfcattendance/internal/store"
)

// postgresHarness wires the services to DATABASE_URL, skipping the test
// when no database is configured.
func postgresHarness(t *testing.T) (*faculty.Authenticator, *faculty.RememberIssuer, *faculty.Directory, string) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(ctx, db.Client))

	email := "it-" + uuid.NewString() + "@x.edu"
	t.Cleanup(func() { deleteFaculty(db.Client, email) })

	deps := faculty.Deps{
		Store:    faculty.NewRepository(db.Client),
		Notifier: &recordingNotifier{},
		Logger:   logging.Discard(),
	}
	tokens := faculty.NewRememberIssuer(deps)
	return faculty.NewAuthenticator(deps, tokens, bcrypt.MinCost), tokens, faculty.NewDirectory(deps), email
}

func deleteFaculty(db *sql.DB, email string) {
	_, _ = db.ExecContext(context.Background(), `DELETE FROM faculty WHERE email = $1`, email)
}

func TestPostgresConcurrentIssueCreatesOneFaculty(t *testing.T) {
	auth, _, dir, email := postgresHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Issue(ctx, email, "Dr. Iyer")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	f, err := dir.Profile(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Iyer", f.Name)
	assert.NotNil(t, f.OTPHash)
}

func TestPostgresConcurrentVerifySucceedsOnce(t *testing.T) {
	auth, tokens, _, email := postgresHarness(t)
	ctx := context.Background()
	code, err := auth.Issue(ctx, email, "Dr. Iyer")
	require.NoError(t, err)

	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won []faculty.Verified
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := auth.Verify(ctx, email, code, true)
			if err != nil {
				assert.ErrorIs(t, err, faculty.ErrNoCode)
				return
			}
			mu.Lock()
			won = append(won, v)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, won, 1)
	require.NotNil(t, won[0].Remember)

	_, err = tokens.Validate(ctx, email, won[0].Remember.Value)
	assert.NoError(t, err)
}

func TestPostgresWrongCodesDiscardCode(t *testing.T) {
	auth, tokens, dir, email := postgresHarness(t)
	ctx := context.Background()
	code, err := auth.Issue(ctx, email, "Dr. Iyer")
	require.NoError(t, err)

	for i := 0; i < faculty.MaxCodeAttempts; i++ {
		_, err = auth.Verify(ctx, email, wrongCode(code), false)
		require.ErrorIs(t, err, faculty.ErrCodeMismatch)
	}
	_, err = auth.Verify(ctx, email, code, false)
	assert.ErrorIs(t, err, faculty.ErrNoCode)

	before, err := dir.Profile(ctx, email)
	require.NoError(t, err)
	require.NoError(t, tokens.Revoke(ctx, email))
	after, err := dir.Profile(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, before.SessionVersion+1, after.SessionVersion)
}
