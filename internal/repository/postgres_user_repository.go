package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buyeth/identity-service/internal/domain"
)

// bootstrapLockKey serializes bootstrap creates through pg_advisory_xact_lock.
const bootstrapLockKey int64 = 0x62757965746801

const pgUniqueViolation = "23505"

const userColumns = `id, email, name, role, active, password_hash, created_at, updated_at`

type postgresUserRepository struct {
	pool   *pgxpool.Pool
	hasher PasswordHasher
	now    func() time.Time
}

// NewPostgresUserRepository returns a Postgres-backed directory. The users table comes
// from the persistence migrations.
func NewPostgresUserRepository(pool *pgxpool.Pool, hasher PasswordHasher) UserRepository {
	return &postgresUserRepository{pool: pool, hasher: hasher, now: time.Now}
}

func (r *postgresUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, pgError("count", err)
	}
	return n, nil
}

func (r *postgresUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, seq ASC`)
	if err != nil {
		return nil, pgError("list", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, pgError("list", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("list", err)
	}
	return users, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, pgError("get", err)
	}
	return user, nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`,
		domain.NormalizeEmail(email)))
	if err != nil {
		return nil, pgError("get by email", err)
	}
	return user, nil
}

func (r *postgresUserRepository) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	user, err := newUserRecord(in, r.hasher, r.now().Truncate(time.Microsecond))
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, pgError("create", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if in.Bootstrap {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return nil, pgError("create", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users)`).Scan(&exists); err != nil {
			return nil, pgError("create", err)
		}
		if exists {
			return nil, ErrDirectoryNotEmpty
		}
	}

	const query = `
        INSERT INTO users (id, email, name, role, active, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		string(user.Role),
		user.Active,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return nil, pgError("create", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgError("create", err)
	}
	return user, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, id string, in domain.UpdateUserInput) (*domain.User, error) {
	hash, err := prepareUpdate(in, r.hasher)
	if err != nil {
		return nil, err
	}

	var role, passwordHash *string
	if in.Role != nil {
		s := string(*in.Role)
		role = &s
	}
	if hash != "" {
		passwordHash = &hash
	}

	const query = `
        UPDATE users SET
            name = COALESCE($2, name),
            role = COALESCE($3, role),
            active = COALESCE($4, active),
            password_hash = COALESCE($5, password_hash),
            updated_at = GREATEST($6, updated_at + interval '1 millisecond')
        WHERE id=$1
        RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query,
		id,
		trimmed(in.Name),
		role,
		in.Active,
		passwordHash,
		r.now().Truncate(time.Microsecond),
	))
	if err != nil {
		return nil, pgError("update", err)
	}
	return user, nil
}

func (r *postgresUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return false, pgError("delete", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&role,
		&user.Active,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// pgError maps driver errors onto directory sentinels. Errors reported by the server are
// returned as-is; anything else means the database could not be reached.
func pgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("postgres %s: %w", op, err)
	}
	return unavailable("postgres", op, err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
