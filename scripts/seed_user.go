package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/auth"
)

// Seeds a profile for local testing and prints an access token for it.
func main() {
	fmt.Println("adding user into database...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	username := os.Getenv("SEED_USERNAME")
	if username == "" {
		log.Fatal("SEED_USERNAME is required")
	}
	var fullName *string
	if v := os.Getenv("SEED_FULL_NAME"); v != "" {
		fullName = &v
	}

	pool, err := pgxpool.New(context.Background(), cfg.DB.DSN)
	if err != nil {
		log.Fatalf("cannot connect DB: %v", err)
	}
	defer pool.Close()

	query := `
		INSERT INTO users (id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id
	`
	var id uuid.UUID
	if err := pool.QueryRow(context.Background(), query, uuid.New(), username, fullName).Scan(&id); err != nil {
		log.Fatalf("cannot add user: %v", err)
	}

	token, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifespan).GenerateToken(id)
	if err != nil {
		log.Fatalf("cannot issue token: %v", err)
	}

	fmt.Printf("added or updated user '%s' (%s) successfully!\n", username, id)
	fmt.Printf("token: %s\n", token)
}
