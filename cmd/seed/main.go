package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/modu-mall/account-api/config"
	"github.com/modu-mall/account-api/pkg/helpers"
)

// Seeds an administrator account for local development.
func main() {
	email := flag.String("email", "admin@modumall.dev", "admin email")
	name := flag.String("name", "Administrator", "admin full name")
	password := flag.String("password", "password123", "admin password")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	hash, err := helpers.HashPassword(*password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (email, full_name, password_hash, profile_img, is_admin)
		VALUES ($1, $2, $3, 'profileImg/1.jpg', TRUE)
		ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name, is_admin = TRUE
		RETURNING id
	`, *email, *name, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded admin: id=%s email=%s name=%s\n", id, *email, *name)
}
