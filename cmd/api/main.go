package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kavosh.dev/internal/auth"
	"kavosh.dev/internal/chat"
	"kavosh.dev/internal/config"
	"kavosh.dev/internal/directory"
	"kavosh.dev/internal/httpapi"
	"kavosh.dev/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Postgres when a DSN is set, in-memory stores otherwise.
	var (
		db        *sql.DB
		userStore auth.UserStore
		chatStore chat.Store
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		userStore = auth.NewPGUserStore(db)
		chatStore = chat.NewPGStore(db)
	} else {
		log.Printf("KAVOSH_PG_DSN not set, using in-memory stores")
		userStore = auth.NewMemoryUserStore()
		chatStore = chat.NewMemoryStore()
	}

	tokens, err := auth.NewTokens(cfg.AuthSecret,
		auth.WithSigningMethod(cfg.AuthAlgorithm),
		auth.WithTokenTTL(cfg.TokenTTL()),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	opts := []auth.ServiceOption{auth.WithLocalOverride(cfg.LocalAuthOverride)}
	if cfg.DirectoryEnabled() {
		dir := directory.New(directory.Config{
			Addr:         cfg.ADServer,
			BaseDN:       cfg.ADBaseDN,
			BindUser:     cfg.ADBindUser,
			BindPassword: cfg.ADBindPassword,
			Timeout:      cfg.ADTimeout(),
		})
		policy := auth.NewPolicy(cfg.ADAllowedTitles, cfg.ADAllowedGroupDNs)
		opts = append(opts, auth.WithDirectory(dir, policy))
	}

	authSvc, err := auth.NewService(userStore, tokens, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, tokens, chatStore)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kavosh-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
