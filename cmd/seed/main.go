// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"quizdeck/internal/config"
	"quizdeck/internal/db"
	"quizdeck/internal/security"
)

const (
	devUserEmail   = "dev@example.com"
	devPassword    = "password123"
	devUserID      = "8f6f2a1e-0000-4000-8000-000000000001"
	memberUserID   = "8f6f2a1e-0000-4000-8000-000000000002"
	memberEmail    = "member@example.com"
	memberPassword = "password123"
	devOrgID       = "8f6f2a1e-0000-4000-8000-0000000000a1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing string
	err = conn.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, devUserEmail).Scan(&existing)
	if err == nil {
		fmt.Println("seed: dev user already exists, nothing to do")
		return
	}
	if err != sql.ErrNoRows {
		log.Fatalf("seed: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	now := time.Now().UTC()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("seed: begin: %v", err)
	}
	defer tx.Rollback()

	insertUser := func(id, email, name, password string) {
		hash, err := hasher.Hash([]byte(password))
		if err != nil {
			log.Fatalf("seed: hash: %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
			id, email, name, now); err != nil {
			log.Fatalf("seed: user %s: %v", email, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (user_id, password_hash, updated_at) VALUES ($1, $2, $3)`,
			id, hash, now); err != nil {
			log.Fatalf("seed: credential %s: %v", email, err)
		}
	}

	insertUser(devUserID, devUserEmail, "Dev User", devPassword)
	insertUser(memberUserID, memberEmail, "Dev Member", memberPassword)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organizations (id, title, description, color, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		devOrgID, "Dev Organization", "Sample organization for local development", "#4287f5", devUserID, now); err != nil {
		log.Fatalf("seed: organization: %v", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, organization_id, permission, approvement, created_at)
		 VALUES ($1, $2, 'write', 'accepted', $3)`,
		devUserID, devOrgID, now); err != nil {
		log.Fatalf("seed: author membership: %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, organization_id, permission, approvement, created_at)
		 VALUES ($1, $2, 'read', 'pending', $3)`,
		memberUserID, devOrgID, now); err != nil {
		log.Fatalf("seed: member invite: %v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("seed: commit: %v", err)
	}

	fmt.Fprintf(os.Stdout, "seed: created %s / %s (password %q) and organization %q\n",
		devUserEmail, memberEmail, devPassword, "Dev Organization")
}
