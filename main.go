package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/nvbf/gameday-sync/pkg/auth"
	"github.com/nvbf/gameday-sync/pkg/clocksync"
	"github.com/nvbf/gameday-sync/pkg/config"
	"github.com/nvbf/gameday-sync/pkg/logging"
	"github.com/nvbf/gameday-sync/pkg/schedule"
	"github.com/nvbf/gameday-sync/repos/audit"
	"github.com/nvbf/gameday-sync/repos/cache"
	"github.com/nvbf/gameday-sync/repos/resend"
	"github.com/nvbf/gameday-sync/repos/rtdb"
	"github.com/nvbf/gameday-sync/repos/sheets"

	"github.com/nvbf/gameday-sync/services/admin"
	"github.com/nvbf/gameday-sync/services/divisions"
	"github.com/nvbf/gameday-sync/services/live"
	"github.com/nvbf/gameday-sync/services/reconcile"
	"github.com/nvbf/gameday-sync/services/results"
	"github.com/nvbf/gameday-sync/services/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clientOptions []option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
	}

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.FirebaseProjectID,
		DatabaseURL: cfg.FirebaseDatabaseURL,
	}, clientOptions...)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing firebase app")
	}

	var minter auth.TokenMinter
	var verifier auth.IDTokenVerifier
	if authClient, err := firebaseApp.Auth(ctx); err != nil {
		log.Warn().Err(err).Msg("Firebase auth unavailable, superadmins get no realtime token")
	} else {
		minter = authClient
		verifier = authClient
	}

	var tree *rtdb.Service
	if cfg.RealtimeEnabled() {
		dbClient, err := firebaseApp.Database(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create realtime database client")
		}
		tree = rtdb.NewService(dbClient, cfg.FirebaseRoot)
	}

	var sheetsService *sheets.Service
	if cfg.SheetsEnabled() {
		sheetsService, err = sheets.NewService(ctx, cfg.GoogleCredentialsJSON, cfg.SpreadsheetID, cfg.Layout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create sheets client")
		}
	}

	var divisionCache cache.DivisionCache = cache.Noop{}
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, division cache disabled")
		} else {
			defer redisClient.Close()
			divisionCache = cache.NewRedis(redisClient, cfg.CacheTTL)
		}
	}

	var auditLog audit.Log = audit.Noop{}
	switch cfg.AuditBackend {
	case config.AuditFirestore:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, clientOptions...)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create Firestore client, submissions are not recorded")
		} else {
			defer firestoreClient.Close()
			auditLog = audit.NewFirestoreLog(firestoreClient)
		}
	case config.AuditPostgres:
		pg, err := audit.NewPostgresLog(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open submissions database")
		}
		defer pg.Close()
		auditLog = pg
	}

	alerts := resend.NewService(cfg.ResendKey, cfg.AlertEmailFrom, cfg.AlertEmailTo)

	local := clockwork.NewRealClock()
	serverClock := clocksync.NewServerClock(local, clocksync.NewEstimator(), cfg.StoreTimeout)

	tokens := auth.NewService(cfg.AdminPassword, cfg.SuperAdminPassword, cfg.SecretSalt, minter)
	adminService := admin.NewAdminService(tokens)

	divisionOptions := divisions.Options{
		Cache:           divisionCache,
		Settings:        schedule.Settings{IsTieAllowed: cfg.AllowTie},
		DefaultDivision: cfg.DefaultDivision,
		Timeout:         cfg.StoreTimeout,
	}
	if sheetsService != nil {
		divisionOptions.Sheets = sheetsService
	}
	if tree != nil {
		divisionOptions.Tree = tree
	}
	divisionsService := divisions.NewDivisionsService(divisionOptions)

	hub := live.NewHub()
	var timerReader live.TimerReader
	if tree != nil {
		timerReader = tree
	}
	poller := live.NewPoller(hub, divisionsService.Realtime(), timerReader, local, cfg.LivePollInterval, cfg.StoreTimeout)
	connections := live.NewConnectionManager(hub, serverClock, live.DefaultConnectionConfig())

	resultOptions := results.Options{
		Audit:       auditLog,
		Refresher:   poller,
		Invalidator: divisionsService,
		Alerter:     alerts,
		Clock:       local,
		Timeout:     cfg.StoreTimeout,
	}
	if tree != nil {
		resultOptions.Tree = tree
	}
	if sheetsService != nil {
		resultOptions.Sheets = sheetsService
	}
	resultsService := results.NewResultsService(resultOptions)

	reconcileOptions := reconcile.Options{
		Alerter:   alerts,
		Refresher: poller,
		Repair:    cfg.ReconcileRepair,
		Clock:     local,
		Timeout:   cfg.StoreTimeout,
	}
	if sheetsService != nil && tree != nil {
		reconcileOptions.Sheets = sheetsService
		reconcileOptions.Tree = tree
	}
	reconcileService := reconcile.NewReconcileService(reconcileOptions)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSHosts
	corsConfig.AllowAllOrigins = len(cfg.CORSHosts) == 0
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Access-Control-Allow-Origin"}

	router := gin.New()
	router.Use(logging.Recovery(), logging.RequestLogger(), cors.New(corsConfig))

	api := router.Group("/api")
	adminRouter := api.Group("", auth.AuthMiddleware(tokens, verifier), auth.RequireRole(auth.RoleAdmin))
	superRouter := api.Group("", auth.AuthMiddleware(tokens, verifier), auth.RequireRole(auth.RoleSuperAdmin))

	divisions.NewHTTPHandler(divisions.HTTPOptions{
		Service: divisionsService,
		Router:  api,
	})

	admin.NewHTTPHandler(admin.HTTPOptions{
		Service: adminService,
		Router:  api,
	})

	results.NewHTTPHandler(results.HTTPOptions{
		Service:     resultsService,
		Tokens:      tokens,
		Router:      api,
		AdminRouter: adminRouter,
	})

	live.NewHTTPHandler(live.HTTPOptions{
		Hub:         hub,
		Connections: connections,
		Clock:       serverClock,
		Router:      api,
	})

	reconcile.NewHTTPHandler(reconcile.HTTPOptions{
		Service: reconcileService,
		Router:  superRouter,
	})

	if tree != nil {
		timerService := timer.NewTimerService(timer.Options{
			Store:   tree,
			Rounds:  divisionsService,
			Clock:   serverClock,
			Timeout: cfg.StoreTimeout,
		})
		watcher := timer.NewWatcher(timerService, serverClock, local)
		timerService.OnChange(poller.TimerChanged)
		timerService.OnChange(watcher.Observe)
		poller.OnTimer(watcher.Observe)

		timer.NewHTTPHandler(timer.HTTPOptions{
			Service:     timerService,
			Clock:       serverClock,
			Router:      api,
			AdminRouter: superRouter,
		})

		go serverClock.Run(ctx, tree, cfg.ClockSyncInterval)
		go watcher.Run(ctx)
	}

	go poller.Run(ctx)
	go reconcile.NewScheduler(reconcileService, local, cfg.ReconcileInterval).Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Bool("sheets", sheetsService != nil).
		Bool("realtime", tree != nil).
		Str("audit", cfg.AuditBackend).
		Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
