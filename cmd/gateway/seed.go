package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// seedAdmin bootstraps a single admin account from env so a fresh install
// can load its first roster. The hash arrives pre-computed (bcrypt); no
// plaintext admin password ever hits the environment.
func seedAdmin(ctx context.Context, dbh *sql.DB, username, passHash string) error {
	var exists int
	err := dbh.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id,username,name,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), username, username, "admin", passHash, time.Now().Unix())
	return err
}
