package userstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/token"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		default:
			return fmt.Errorf("unexpected dest %T", d)
		}
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	tag     pgconn.CommandTag
	execErr error
	lastSQL string
	args    []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.args = sql, args
	return f.tag, f.execErr
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.args = sql, args
	return f.row
}

func TestGetByEmailMapsRow(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{int64(7), "a@example.com", "$argon2id$x", "company", "Acme", "active"}}}
	s := NewPostgres(db)

	rec, err := s.GetByEmail(context.Background(), "  A@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, []any{"a@example.com"}, db.args)
	require.Equal(t, portalauth.UserRecord{
		ID:           7,
		Email:        "a@example.com",
		PasswordHash: "$argon2id$x",
		Role:         token.RoleCompany,
		CompanyName:  "Acme",
		AccountState: portalauth.AccountActive,
	}, rec)
}

func TestNoRowsIsUserNotFound(t *testing.T) {
	s := NewPostgres(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := s.GetByID(context.Background(), 1)
	require.ErrorIs(t, err, portalauth.ErrUserNotFound)

	_, err = s.GetByEmail(context.Background(), "x@example.com")
	require.ErrorIs(t, err, portalauth.ErrUserNotFound)
}

func TestQueryFailureIsNotUserNotFound(t *testing.T) {
	s := NewPostgres(&fakeDB{row: fakeRow{err: errors.New("connection reset")}})

	_, err := s.GetByID(context.Background(), 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, portalauth.ErrUserNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 1")}
	require.NoError(t, NewPostgres(db).UpdatePasswordHash(context.Background(), 3, "new"))
	require.Equal(t, []any{int64(3), "new"}, db.args)

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewPostgres(db).UpdatePasswordHash(context.Background(), 3, "new")
	require.ErrorIs(t, err, portalauth.ErrUserNotFound)
}

func TestCreateRejectsInvalidRecord(t *testing.T) {
	_, err := NewPostgres(&fakeDB{}).Create(context.Background(), portalauth.UserRecord{
		Email: "x@example.com", Role: "root", AccountState: portalauth.AccountActive,
	})
	require.Error(t, err)
}

func TestCreateDuplicateEmail(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "23505"}}}
	_, err := NewPostgres(db).Create(context.Background(), portalauth.UserRecord{
		Email: "x@example.com", PasswordHash: "h", Role: token.RoleEmployee, AccountState: portalauth.AccountPending,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

// startPostgres runs a throwaway postgres:16-alpine container. Skipped unless
// GO_TEST_INTEGRATION is set:
//
//	GO_TEST_INTEGRATION=1 go test ./userstore -count=1
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return false
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			return false
		}
		return true
	}, 30*time.Second, 250*time.Millisecond)
	t.Cleanup(pool.Close)
	return pool
}

func TestIntegration_Postgres_RoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	s := NewPostgres(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema must be re-appliable")

	id, err := s.Create(ctx, portalauth.UserRecord{
		Email:        "Boss@Example.com",
		PasswordHash: "$2y$10$abc",
		Role:         token.RoleAdmin,
		AccountState: portalauth.AccountActive,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	_, err = s.Create(ctx, portalauth.UserRecord{
		Email: "boss@example.com", PasswordHash: "x", Role: token.RoleEmployee, AccountState: portalauth.AccountPending,
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	rec, err := s.GetByEmail(ctx, "BOSS@example.com")
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
	require.Equal(t, token.RoleAdmin, rec.Role)

	require.NoError(t, s.UpdatePasswordHash(ctx, id, "$argon2id$new"))
	rec, err = s.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "$argon2id$new", rec.PasswordHash)

	_, err = s.GetByID(ctx, id+1000)
	require.ErrorIs(t, err, portalauth.ErrUserNotFound)
}
