package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/taskforge/identity"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("identity"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	log := lgr.GetLogger("boot")

	cfg, err := LoadConfig(os.Getenv("IDENTITY_CONFIG"))
	if err != nil {
		log.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg.Database.DSN)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := identity.NewRepositoryManager(db)
	repo.MustValidate()

	userProvider := identity.NewUserProvider(repo.Users()).
		WithLogger(lgr.GetLogger("identity:prv"))

	tokens := identity.NewTokenService(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.Issuer,
		jwt.ClaimStrings(cfg.Auth.Audience),
		lgr.GetLogger("identity:tokens"),
	)

	auther := identity.NewAuthenticator(userProvider, &cfg.Auth).
		WithTokenService(tokens).
		WithLogger(lgr.GetLogger("identity:auth"))

	identity.RegisterMetrics()
	go serveMetrics(cfg.Server.MetricsAddress, lgr.GetLogger("metrics"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup := identity.NewCleanupExpiredTokensHandler(repo).
		WithLogger(lgr.GetLogger("identity:sweep"))
	go cleanup.RunEvery(ctx, cfg.Auth.CleanupInterval)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       "taskforge-identity",
		}))
	})
	srv.Router().WithLogger(lgr.GetLogger("router"))

	controller := identity.NewAuthController(
		identity.WithControllerLogger(lgr.GetLogger("identity:ctrl")),
		identity.WithControllerRepo(repo),
		identity.WithControllerAuthenticator(auther),
		identity.WithControllerTokenService(tokens),
		identity.WithControllerConfig(&cfg.Auth),
	)

	identity.RegisterRoutes(srv.Router(), controller)

	log.Info("listening on %s", cfg.Server.Address)
	srv.Serve(cfg.Server.Address)

	WaitExitSignal()
	cancel()
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.RegisterModel((*identity.UserRole)(nil))

	return db, nil
}

func serveMetrics(addr string, log glog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", identity.MetricsHandler())

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics listener stopped: %v", err)
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
