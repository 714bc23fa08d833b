package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/orsg/prisme/internal/repository/postgres"
)

// migrate creates the generation history schema ahead of a server rollout.
//
//	DATABASE_URL=postgres://... migrate [--list]
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	listOnly := len(os.Args) > 1 && os.Args[1] == "--list"

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	if !listOnly {
		if err := postgres.NewHistoryRepo(db).Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("History schema is up to date")
	}

	rows, err := db.QueryContext(ctx, "SELECT tablename FROM pg_tables WHERE schemaname='public' AND tablename LIKE 'prisme_%' ORDER BY tablename")
	if err != nil {
		log.Fatalf("list tables: %v", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			log.Fatalf("list tables: %v", err)
		}
		fmt.Println(" ", t)
		n++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("list tables: %v", err)
	}
	fmt.Printf("Total: %d tables\n", n)
}
