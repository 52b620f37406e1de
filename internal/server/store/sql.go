package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zhusq20/APIFarm/internal/dbx"
	"github.com/zhusq20/APIFarm/internal/filex"
	"github.com/zhusq20/APIFarm/internal/server/migrations"
	"github.com/zhusq20/APIFarm/internal/server/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQL dialects understood by SQLStore.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "pgx"
)

const sqliteFileName = "apifarm.db"

// SQLStore keeps the records in three tables (users, credentials,
// user_keys). Saves replace a record's tables inside one transaction.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLite opens (creating if needed) apifarm.db in dir and migrates it.
func OpenSQLite(ctx context.Context, dir string) (*SQLStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	dsn := "file:" + filepath.Join(abs, sqliteFileName) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := dbx.Migrate(ctx, db, DialectSQLite, migrations.Migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, DialectSQLite), nil
}

// OpenPostgres connects with the pgx stdlib driver and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := dbx.Migrate(ctx, db, DialectPostgres, migrations.Migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, DialectPostgres), nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) LoadUsers(ctx context.Context) (models.Users, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, password_hash, created_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := models.Users{}
	for rows.Next() {
		var (
			u       models.User
			created int64
		)
		if err := rows.Scan(&u.ID, &u.UserName, &u.PasswordHash, &created); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if created != 0 {
			u.CreatedAt = time.Unix(created, 0).UTC()
		}
		users[u.UserName] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (s *SQLStore) SaveUsers(ctx context.Context, users models.Users) error {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	slices.Sort(names)

	insert := s.rebind(`INSERT INTO users (user_id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for _, name := range names {
			u := users[name]
			var created int64
			if !u.CreatedAt.IsZero() {
				created = u.CreatedAt.Unix()
			}
			if _, err := tx.ExecContext(ctx, insert, u.ID, name, u.PasswordHash, created); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLStore) LoadOwnership(ctx context.Context) (*models.Ownership, error) {
	o := models.NewOwnership()

	rows, err := s.db.QueryContext(ctx, `SELECT secret, endpoint FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	for rows.Next() {
		var secret, endpoint string
		if err := rows.Scan(&secret, &endpoint); err != nil {
			rows.Close()
			return nil, fmt.Errorf("db error: %w", err)
		}
		if endpoint != "" {
			o.Endpoints[secret] = endpoint
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT user_id, secret FROM user_keys ORDER BY user_id, position`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid, secret string
		if err := rows.Scan(&uid, &secret); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		o.UserKeys[uid] = append(o.UserKeys[uid], secret)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (s *SQLStore) SaveOwnership(ctx context.Context, o *models.Ownership) error {
	uids := make([]string, 0, len(o.UserKeys))
	for uid := range o.UserKeys {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	insertCred := s.rebind(`INSERT INTO credentials (secret, endpoint) VALUES (?, ?)`)
	insertEdge := s.rebind(`INSERT INTO user_keys (user_id, secret, position) VALUES (?, ?, ?)`)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_keys`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for _, secret := range o.Secrets() {
			if _, err := tx.ExecContext(ctx, insertCred, secret, o.Endpoints[secret]); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		for _, uid := range uids {
			for pos, secret := range o.UserKeys[uid] {
				if _, err := tx.ExecContext(ctx, insertEdge, uid, secret, pos); err != nil {
					return fmt.Errorf("db error: %w", err)
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
