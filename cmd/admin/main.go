package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/admin"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// The command and email are the last two arguments; everything before them
// is read by the server config layers (-d, -c, GOPHAUTH_* env).
func main() {

	args := os.Args[1:]
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, admin.Usage)
		os.Exit(2)
	}
	cmd, email := args[len(args)-2], args[len(args)-1]

	cfg := config.LoadConfig()
	if cfg.DatabaseDSN == "" {
		log.Fatal("database DSN is required")
	}

	rm, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer func() { _ = rm.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := admin.New(rm, os.Stdout).Exec(ctx, cmd, email); err != nil {
		log.Printf("%v", err)
		cancel()
		_ = rm.Close()
		os.Exit(1)
	}

}
