package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/accounts"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/api"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/db"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
)

func cmdServe(a *app, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "")
	adminUser := fs.String("user", "Admin", "")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.Open(a.cfg.Data.AccountsPath())
	if err != nil {
		return fmt.Errorf("opening accounts database: %w", err)
	}
	defer database.Close()
	accts := accounts.New(database)

	if err := ensureAdmin(ctx, a, accts, *adminUser); err != nil {
		return err
	}

	jwtSecret, err := accts.JWTSecret(ctx)
	if err != nil {
		return err
	}

	inv, err := a.inventory()
	if err != nil {
		return err
	}
	subs, err := a.subscriptions()
	if err != nil {
		return err
	}
	leads, err := a.leads()
	if err != nil {
		return err
	}

	cache := a.redis()
	weather := a.weather(cache)
	deps := api.Deps{
		Accounts:      accts,
		JWTSecret:     jwtSecret,
		Inventory:     inv,
		Subscriptions: subs,
		Leads:         leads,
		Fulfillment: &fulfillment.Coordinator{
			Inventory:     inv,
			Subscriptions: subs,
			Weather:       weather,
			Events:        a.events(),
			Now:           a.now,
		},
		Weather:         weather,
		ItemIDs:         ident.NewRandomSuffix(),
		LoginsPerMinute: int64(a.cfg.Server.LoginAttemptsPerMinute),
		Publisher:       a.publisher(),
		Layout:          a.layout(),
		Now:             a.now,
	}
	if cache != nil {
		deps.Limiter = cache
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(deps))
	mux.Handle("GET /Assets/", http.StripPrefix("/Assets/", http.FileServer(http.Dir(a.cfg.Site.AssetsDir))))

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", *addr, "inventory", a.cfg.Data.InventoryPath(), "weather", a.cfg.Weather.Provider)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// ensureAdmin creates the first admin account with a random password when
// the accounts database has no users yet.
func ensureAdmin(ctx context.Context, a *app, accts *accounts.Store, username string) error {
	n, err := accts.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	if _, err := accts.CreateUser(ctx, username, password, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	fmt.Fprintf(a.out, "Accounts database created: %s\n\n", a.cfg.Data.AccountsPath())
	fmt.Fprintln(a.out, "Admin account created:")
	fmt.Fprintf(a.out, "  Username: %s\n", username)
	fmt.Fprintf(a.out, "  Password: %s\n\n", password)
	fmt.Fprintln(a.out, "Save this password, it cannot be recovered.")
	fmt.Fprintln(a.out, "The admin can change it after logging in.")
	fmt.Fprintln(a.out)
	return nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
