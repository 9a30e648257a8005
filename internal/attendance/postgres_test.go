package attendance_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/logging"
	"nfcattendance/internal/roster"
	"nfcattendance/internal/store"
)

// openPostgres connects to DATABASE_URL and migrates it, skipping the test
// when no database is configured.
func openPostgres(t *testing.T) *sql.DB {
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
	return db.Client
}

func TestPostgresConcurrentAdmitsAcceptExactlyOne(t *testing.T) {
	db := openPostgres(t)
	ctx := context.Background()

	reg := "IT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	st, err := roster.NewRepository(db).CreateStudent(ctx, roster.Student{
		ID: uuid.NewString(), Name: "Asha Rao", RegisterNumber: reg,
		Section: "A", Department: "CSE", Duration: "2022-2026",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.ExecContext(context.Background(), `DELETE FROM students WHERE id = $1`, st.ID) })

	svc := attendance.NewService(attendance.NewRepository(db), nil, logging.Discard())
	at := time.Now().UTC().Truncate(time.Microsecond)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Admit(ctx, st.ID, at.Add(time.Duration(i)*time.Millisecond), attendance.Meta{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected admit error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, conflicts)

	history, err := svc.History(ctx, st.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Unknown Faculty", history[0].RecordedBy)
	assert.Equal(t, reg, history[0].RegisterNumber)

	_, err = svc.Admit(ctx, st.ID, at.Add(attendance.DedupWindow+time.Second), attendance.Meta{RecordedBy: "Dr. Iyer"})
	require.NoError(t, err)
}
