package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"paytabs-commerce/internal/db"
	"paytabs-commerce/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

var errNoDatabaseURL = errors.New("DB_URL not set in environment")

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "directory holding *.sql migrations")
	flag.Parse()

	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	if err := run(os.Getenv("DB_URL"), *mode, *dir); err != nil {
		log.Fatal(err)
	}
}

func run(dbURL, mode, dir string) error {
	if dbURL == "" {
		return errNoDatabaseURL
	}

	database, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect db: %w", err)
	}
	defer database.Close()

	return db.Migrate(database, mode, dir)
}
