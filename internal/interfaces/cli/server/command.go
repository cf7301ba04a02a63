// Package server implements the `veilnet server` command: full bring-up of
// the panel, the background jobs and the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	adminusecases "github.com/veilnet-io/veilnet/internal/application/admin/usecases"
	nodeservices "github.com/veilnet-io/veilnet/internal/application/node/services"
	nodeusecases "github.com/veilnet-io/veilnet/internal/application/node/usecases"
	"github.com/veilnet-io/veilnet/internal/application/subscription"
	"github.com/veilnet-io/veilnet/internal/application/usage"
	userusecases "github.com/veilnet-io/veilnet/internal/application/user/usecases"
	"github.com/veilnet-io/veilnet/internal/domain/node"
	"github.com/veilnet-io/veilnet/internal/infrastructure/auth"
	"github.com/veilnet-io/veilnet/internal/infrastructure/cache"
	"github.com/veilnet-io/veilnet/internal/infrastructure/config"
	"github.com/veilnet-io/veilnet/internal/infrastructure/database"
	"github.com/veilnet-io/veilnet/internal/infrastructure/migration"
	"github.com/veilnet-io/veilnet/internal/infrastructure/nodeclient"
	"github.com/veilnet-io/veilnet/internal/infrastructure/pki"
	"github.com/veilnet-io/veilnet/internal/infrastructure/repository"
	"github.com/veilnet-io/veilnet/internal/infrastructure/scheduler"
	"github.com/veilnet-io/veilnet/internal/infrastructure/sysmetrics"
	"github.com/veilnet-io/veilnet/internal/infrastructure/token"
	httpiface "github.com/veilnet-io/veilnet/internal/interfaces/http"
	"github.com/veilnet-io/veilnet/internal/interfaces/http/handlers"
	"github.com/veilnet-io/veilnet/internal/interfaces/http/middleware"
	"github.com/veilnet-io/veilnet/internal/shared/db"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

var (
	env        string
	skipMigrat bool
)

// NewCommand creates the server command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the panel server",
		Long:  `Start the control plane: HTTP API, node reconciliation, usage pipeline and subscription endpoint.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "", "Environment override for server mode")
	cmd.Flags().BoolVar(&skipMigrat, "skip-migrations", false, "Do not apply pending migrations on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if cfg.Server.Mode == "release" || cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	gdb := database.Get()

	if !skipMigrat {
		if err := migration.Up(gdb, log); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	// Repositories.
	users := repository.NewUserRepository(gdb, log)
	admins := repository.NewAdminRepository(gdb, log)
	nodes := repository.NewNodeRepository(gdb, log)
	serviceConfigs := repository.NewServiceConfigRepository(gdb, log)
	usageRepo := repository.NewUsageRepository(gdb, log)
	certs := repository.NewCertificateRepository(gdb, log)
	reminders := repository.NewReminderRepository(gdb, log)
	resets := repository.NewUsageResetRepository(gdb, log)
	tm := db.NewTransactionManager(gdb)

	// Ambient services.
	presence := cache.NewPresenceCache(&cfg.Redis, log)
	defer presence.Close()
	jwtService := auth.NewJWTService(&cfg.Auth)
	issuer := token.NewSubscriptionIssuer(cfg.Auth.JWTSecret)

	// PKI must be ready before any node client exists.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()
	pkiManager := pki.NewManager(certs, log)
	if _, err := pkiManager.EnsureCA(bootCtx); err != nil {
		return fmt.Errorf("failed to ensure fleet CA: %w", err)
	}
	caPEM, err := pkiManager.CABundlePEM(bootCtx)
	if err != nil {
		return fmt.Errorf("failed to read CA bundle: %w", err)
	}
	registry := nodeclient.NewRegistry(caPEM, log)

	if cfg.PKI.ExportDir != "" {
		if err := exportNodeCerts(bootCtx, pkiManager, nodes, cfg.PKI.ExportDir, log); err != nil {
			return fmt.Errorf("failed to export node certificates: %w", err)
		}
	}

	// Orchestration core.
	builder := nodeservices.NewConfigBuilder()
	operations := nodeservices.NewOperations(nodes, serviceConfigs, users, registry, builder, pkiManager, log)
	healthChecker := nodeservices.NewHealthChecker(nodes, registry, operations, log)

	// Usage pipeline.
	collector := usage.NewCollector(nodes, users, usageRepo, registry, presence, tm, log)
	aggregator := usage.NewAggregator(usageRepo, log)
	reviewer := usage.NewReviewer(users, operations, log)
	periodicReset := usage.NewPeriodicReset(users, resets, reminders, usageRepo, tm, operations, log)
	autoDelete := usage.NewAutoDelete(users, reminders, usageRepo, presence, operations,
		cfg.Jobs.AutoDeleteDefaultDays, cfg.Jobs.AutoDeleteIncludeLimited, log)
	reminderSweep := usage.NewReminderSweep(reminders, log)
	sampler := sysmetrics.NewSampler()

	// Use cases.
	createUser := userusecases.NewCreateUserUseCase(users, issuer, log)
	updateUser := userusecases.NewUpdateUserUseCase(users, operations, log)
	getUser := userusecases.NewGetUserUseCase(users, usageRepo, presence, issuer)
	listUsers := userusecases.NewListUsersUseCase(users)
	deleteUser := userusecases.NewDeleteUserUseCase(users, reminders, usageRepo, presence, operations, log)
	resetUsage := userusecases.NewResetUserUsageUseCase(users, resets, reminders, usageRepo, tm, operations, log)
	revokeSub := userusecases.NewRevokeSubscriptionUseCase(users, issuer, operations, log)
	applyNextPlan := userusecases.NewApplyNextPlanUseCase(users, operations, log)

	createNode := nodeusecases.NewCreateNodeUseCase(nodes, pkiManager, operations, log)
	updateNode := nodeusecases.NewUpdateNodeUseCase(nodes, pkiManager, operations, log)
	deleteNode := nodeusecases.NewDeleteNodeUseCase(nodes, certs, users, registry, log)
	getNode := nodeusecases.NewGetNodeUseCase(nodes, usageRepo, registry)
	listNodes := nodeusecases.NewListNodesUseCase(nodes)
	manageServices := nodeusecases.NewManageServiceConfigsUseCase(nodes, serviceConfigs, operations, log)

	login := adminusecases.NewLoginUseCase(admins, jwtService, log)
	manageAdmins := adminusecases.NewManageAdminsUseCase(admins, &cfg.Auth, log)

	renderer := subscription.NewRenderer(nodes, serviceConfigs, cfg.Subscription, log)

	// HTTP surface.
	authMW := middleware.NewAuthMiddleware(jwtService, admins, log)
	router := httpiface.NewRouter(
		&cfg.Server,
		&cfg.Subscription,
		handlers.NewAuthHandler(login, log),
		handlers.NewUserHandler(createUser, updateUser, getUser, listUsers, deleteUser,
			resetUsage, revokeSub, applyNextPlan, operations, log),
		handlers.NewAdminHandler(manageAdmins, log),
		handlers.NewNodeHandler(createNode, updateNode, deleteNode, getNode, listNodes,
			operations, registry, log),
		handlers.NewServiceHandler(manageServices, log),
		handlers.NewSubscriptionHandler(users, issuer, renderer, getUser, log),
		handlers.NewSystemHandler(users, nodes, sampler, operations, log),
		authMW,
		log,
	)
	router.SetupRoutes()

	// Background jobs.
	jobs, err := scheduler.NewManager(cfg.Jobs, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	registrations := []func() error{
		func() error { return jobs.RegisterHealthCheck(healthChecker) },
		func() error { return jobs.RegisterUsageCollection(collector) },
		func() error { return jobs.RegisterAggregation(aggregator) },
		func() error { return jobs.RegisterReview(reviewer) },
		func() error { return jobs.RegisterPeriodicReset(periodicReset) },
		func() error { return jobs.RegisterAutoDelete(autoDelete) },
		func() error { return jobs.RegisterReminderSweep(reminderSweep) },
		func() error {
			return jobs.RegisterBandwidthSample(scheduler.TickFunc(func(context.Context) error {
				return sampler.Tick()
			}))
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}
	jobs.Start()

	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           router.GetEngine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		jobs.Stop()
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Infow("shutdown signal received", "signal", sig.String())
	}

	// Teardown mirrors bring-up in reverse: stop accepting work, then let
	// in-flight jobs and requests finish.
	if err := jobs.Stop(); err != nil {
		log.Warnw("scheduler stop failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	for _, client := range registry.List() {
		client.Disconnect(shutdownCtx)
	}

	log.Infow("server stopped")
	return nil
}

// exportNodeCerts writes per-node certificate bundles for out-of-band
// worker provisioning.
func exportNodeCerts(ctx context.Context, pkiManager *pki.Manager, nodes node.Repository, dir string, log logger.Interface) error {
	all, err := nodes.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range all {
		target := filepath.Join(dir, n.Name())
		if err := pkiManager.Export(ctx, n, target); err != nil {
			return err
		}
		log.Infow("node certificates exported", "node", n.Name(), "dir", target)
	}
	return nil
}
