package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/catalog"
	"github.com/dukerupert/roadpoints/internal/config"
	"github.com/dukerupert/roadpoints/internal/database"
	"github.com/dukerupert/roadpoints/internal/email"
	"github.com/dukerupert/roadpoints/internal/logging"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/points"
	"github.com/dukerupert/roadpoints/internal/scheduler"
	"github.com/dukerupert/roadpoints/internal/server"
	"github.com/dukerupert/roadpoints/internal/store"
)

// app carries what every command needs once the global flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	a := &app{}
	cliApp := &cli.App{
		Name:  "roadpoints",
		Usage: "driver incentive points ledger and redemption service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "SQLite database path (overrides ROADPOINTS_DB_PATH)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides ROADPOINTS_LOG_LEVEL)"},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server and scheduled jobs",
				Action: a.serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: a.migrate,
			},
			{
				Name:   "accrue",
				Usage:  "run the daily points accrual once",
				Action: a.accrue,
			},
			{
				Name:  "expire",
				Usage: "expire aged points for sponsors with auto-expiration enabled",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "sponsor", Usage: "limit to one sponsor id"},
				},
				Action: a.expire,
			},
			{
				Name:   "verify",
				Usage:  "check every cached balance against its ledger",
				Action: a.verify,
			},
			{
				Name:  "jobs",
				Usage: "run scheduled jobs now",
				Subcommands: []*cli.Command{
					{
						Name:      "run",
						Usage:     "run one job by name (accrual, expiration, token_cleanup)",
						ArgsUsage: "<name>",
						Action:    a.runJob,
					},
					{
						Name:   "run-all",
						Usage:  "run every job concurrently; a failing job does not stop the others",
						Action: a.runAllJobs,
					},
				},
			},
			{
				Name:  "sponsor",
				Usage: "manage sponsors",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a sponsor company",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
						},
						Action: a.createSponsor,
					},
				},
			},
			{
				Name:  "user",
				Usage: "manage users",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a driver, sponsor or admin account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "username", Required: true},
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ROADPOINTS_NEW_USER_PASSWORD"}},
							&cli.StringFlag{Name: "role", Value: string(model.RoleDriver)},
							&cli.Int64Flag{Name: "sponsor-id", Usage: "required for sponsor users"},
						},
						Action: a.createUser,
					},
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func (a *app) setup(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := c.String("db"); v != "" {
		cfg.DBPath = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (a *app) open() (*sql.DB, error) {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.DBPath, err)
	}
	return db, nil
}

func (a *app) engine(db *sql.DB) *points.Engine {
	return points.NewEngine(db, points.WithLogger(a.logger))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) serve(c *cli.Context) error {
	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	ebay := catalog.NewEbayClient(a.cfg.Ebay)
	if !ebay.Configured() {
		a.logger.Warn("eBay credentials not set, product search disabled")
	}
	mailer := email.NewClient(a.cfg.PostmarkToken, a.cfg.FromEmail, a.cfg.BaseURL)
	if !mailer.Configured() {
		a.logger.Warn("postmark token not set, order emails disabled")
	}

	srv, err := server.New(db, a.cfg, ebay, mailer, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("roadpoints listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) migrate(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := database.Migrate(c.Context, db)
	if err != nil {
		return err
	}
	a.logger.Info("database migrated", "path", a.cfg.DBPath, "version", version)
	return nil
}

func (a *app) accrue(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := a.engine(db).RunDailyAccrual(c.Context)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func (a *app) expire(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := a.engine(db).RunExpiration(c.Context, points.System{}, c.Int64("sponsor"))
	if err != nil {
		return err
	}
	return printJSON(report)
}

func (a *app) verify(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	drift, err := a.engine(db).Ledger().Verify(c.Context)
	if err != nil {
		return err
	}
	if len(drift) == 0 {
		a.logger.Info("ledger consistent")
		return nil
	}
	if err := printJSON(drift); err != nil {
		return err
	}
	return fmt.Errorf("%d balances disagree with the ledger", len(drift))
}

func (a *app) jobRunner(db *sql.DB) (*scheduler.Runner, error) {
	r := scheduler.New(a.logger, nil)
	for _, job := range scheduler.StandardJobs(a.engine(db), store.NewRevokedTokenStore(db), scheduler.Schedules{}) {
		if err := r.Add(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (a *app) runJob(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("job name required")
	}
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := a.jobRunner(db)
	if err != nil {
		return err
	}
	return r.Run(c.Context, name)
}

func (a *app) runAllJobs(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := a.jobRunner(db)
	if err != nil {
		return err
	}
	return r.RunAll(c.Context)
}

func (a *app) createSponsor(c *cli.Context) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	sp, err := store.NewSponsorStore(db).Create(c.Context, c.String("name"))
	if err != nil {
		return err
	}
	return printJSON(sp)
}

func (a *app) createUser(c *cli.Context) error {
	role := model.Role(c.String("role"))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	var sponsorID *int64
	if id := c.Int64("sponsor-id"); id > 0 {
		sponsorID = &id
	}
	if role == model.RoleSponsor && sponsorID == nil {
		return errors.New("sponsor users need --sponsor-id")
	}

	hash, err := auth.HashPassword(c.String("password"))
	if err != nil {
		return err
	}

	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := store.NewUserStore(db).Create(c.Context, store.NewUser{
		Username:     c.String("username"),
		Email:        c.String("email"),
		PasswordHash: hash,
		Role:         role,
		SponsorID:    sponsorID,
	})
	if err != nil {
		return err
	}
	a.logger.Info("user created", "user_id", u.ID, "role", u.Role)
	return printJSON(u)
}
