package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/biscalabs/biscagate/internal/dealer"
	"github.com/biscalabs/biscagate/internal/events"
	"github.com/biscalabs/biscagate/internal/handler"
	"github.com/biscalabs/biscagate/internal/ledger"
	"github.com/biscalabs/biscagate/internal/middleware"
	"github.com/biscalabs/biscagate/internal/oracle"
	"github.com/biscalabs/biscagate/internal/pkg/logger"
	"github.com/biscalabs/biscagate/internal/repository"
	"github.com/biscalabs/biscagate/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(cfg.Log.Level)

	// 3. Initialize Persistence
	// Treasury state (Redis > Memory)
	var stateStore treasury.StateStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			stateStore = redisClient
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if stateStore == nil {
		stateStore = treasury.NewMemoryStore()
	}

	// Settlement entries + game history (Postgres)
	var entryRepo treasury.EntryRepo
	var entryLister handler.EntryLister
	var historyRepo dealer.HistoryRepo
	var historyStore handler.HistoryStore
	var janitor func(context.Context)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		var pgEntries *repository.PostgresEntryRepo
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			pgEntries = repository.NewPostgresEntryRepo(db)
			entryRepo = pgEntries
			entryLister = pgEntries
		} else {
			logger.Error("⚠️ Failed to connect to DB, settlement entries will not be persisted", "error", err)
		}

		hist, err := repository.NewGormHistoryRepo(cfg.Database.DSN)
		if err == nil {
			historyRepo = hist
			historyStore = hist
		} else {
			logger.Error("⚠️ Failed to open game history store", "error", err)
		}

		if cfg.Database.HistoryRetentionDays > 0 && (pgEntries != nil || hist != nil) {
			retention := time.Duration(cfg.Database.HistoryRetentionDays) * 24 * time.Hour
			janitor = func(ctx context.Context) {
				if pgEntries != nil {
					if n, err := pgEntries.Cleanup(ctx, retention); err != nil {
						logger.Warn("settlement entries cleanup failed", "error", err)
					} else if n > 0 {
						logger.Info("settlement entries pruned", "rows", n)
					}
				}
				if hist != nil {
					if n, err := hist.Cleanup(ctx, retention); err != nil {
						logger.Warn("game history cleanup failed", "error", err)
					} else if n > 0 {
						logger.Info("game history pruned", "rows", n)
					}
				}
			}
		}
	}

	// 4. Initialize Core Services
	bus := events.NewBus()
	hub := events.NewHub(bus)

	admin := common.HexToAddress(cfg.Ledger.Admin)
	treasuryAddr := common.HexToAddress(cfg.Treasury.Address)
	house := common.HexToAddress(cfg.Dealer.House)
	oracleIdentity := common.HexToAddress(cfg.Oracle.Identity)

	initialSupply, err := decimal.NewFromString(cfg.Ledger.InitialSupply)
	if err != nil {
		log.Fatalf("Malformed ledger.initial_supply: %v", err)
	}
	tokens := ledger.NewInMemory(cfg.Ledger.Name, cfg.Ledger.Symbol, admin, initialSupply)
	if err := tokens.GrantRole(admin, ledger.RoleMinter, treasuryAddr); err != nil {
		log.Fatalf("Failed to grant minter role to treasury: %v", err)
	}
	if err := tokens.GrantRole(admin, ledger.RoleBurner, treasuryAddr); err != nil {
		log.Fatalf("Failed to grant burner role to treasury: %v", err)
	}

	var coord oracle.Coordinator
	var local *oracle.LocalCoordinator
	if cfg.Oracle.LocalMode {
		local = oracle.NewLocalCoordinator(oracleIdentity, 100*time.Millisecond)
		coord = local
		logger.Warn("⚠️ Oracle running in local mode, randomness is self-generated")
	} else {
		coord = oracle.NewHTTPCoordinator(cfg.Oracle.Endpoint)
	}
	ttl := time.Duration(cfg.Oracle.RequestTTLSeconds) * time.Second
	broker := oracle.NewBroker(coord, oracleIdentity, ttl, bus)
	if local != nil {
		local.Bind(broker)
	}

	owners := make([]common.Address, 0, len(cfg.Treasury.Owners))
	for _, o := range cfg.Treasury.Owners {
		if !common.IsHexAddress(o) {
			log.Fatalf("Malformed treasury owner address: %s", o)
		}
		owners = append(owners, common.HexToAddress(o))
	}
	eventAmount, err := decimal.NewFromString(cfg.Treasury.RandomEventAmount)
	if err != nil {
		log.Fatalf("Malformed treasury.random_event_amount: %v", err)
	}
	treasurySvc, err := treasury.New(treasury.Params{
		Owners:             owners,
		RequiredSignatures: cfg.Treasury.RequiredSignatures,
		Self:               treasuryAddr,
		Token:              common.HexToAddress(cfg.Ledger.Address),
		Beneficiary:        common.HexToAddress(cfg.Treasury.Beneficiary),
		RandomEventAmount:  eventAmount,
		Cooldown:           time.Duration(cfg.Treasury.CooldownSeconds) * time.Second,
	}, broker, tokens, stateStore, entryRepo, bus)
	if err != nil {
		log.Fatalf("Failed to initialize treasury: %v", err)
	}

	minBet, err := decimal.NewFromString(cfg.Dealer.MinBet)
	if err != nil {
		log.Fatalf("Malformed dealer.min_bet: %v", err)
	}
	maxBet, err := decimal.NewFromString(cfg.Dealer.MaxBet)
	if err != nil {
		log.Fatalf("Malformed dealer.max_bet: %v", err)
	}
	dealerSvc := dealer.New(dealer.Params{
		House:  house,
		MinBet: minBet,
		MaxBet: maxBet,
	}, broker, tokens, historyRepo, bus)

	// 5. Initialize Handlers
	dealerHandler := handler.NewDealerHandler(dealerSvc)
	treasuryHandler := handler.NewTreasuryHandler(treasurySvc, entryLister)
	oracleHandler := handler.NewOracleHandler(broker)
	ledgerHandler := handler.NewLedgerHandler(tokens, cfg.Ledger.Name, cfg.Ledger.Symbol)

	// 6. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "biscagate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Event Stream
	r.GET("/v1/events/ws", gin.WrapF(hub.ServeWS))

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	{
		v1.POST("/games", dealerHandler.StartGame)
		v1.GET("/games/:id", dealerHandler.GetGame)
		v1.POST("/games/:id/deal", dealerHandler.Deal)
		v1.POST("/games/:id/hit", dealerHandler.Hit)
		v1.POST("/games/:id/stand", dealerHandler.Stand)
		v1.POST("/games/:id/double-down", dealerHandler.DoubleDown)
		v1.POST("/games/:id/cancel", dealerHandler.Cancel)

		v1.POST("/treasury/mint", treasuryHandler.ProposeMint)
		v1.POST("/treasury/burn", treasuryHandler.ProposeBurn)
		v1.POST("/treasury/proposals/:id/approve", treasuryHandler.Approve)
		v1.POST("/treasury/proposals/:id/execute", treasuryHandler.Execute)
		v1.GET("/treasury/proposals/:id", treasuryHandler.GetProposal)
		v1.GET("/treasury", treasuryHandler.Info)
		v1.GET("/treasury/entries", treasuryHandler.ListEntries)
		v1.POST("/treasury/random-event", treasuryHandler.TriggerRandomEvent)
		v1.POST("/treasury/random-event/:requestId/handle", treasuryHandler.HandleRandomness)

		v1.POST("/oracle/callback", oracleHandler.Callback)
		v1.GET("/oracle/requests/:id", oracleHandler.GetRequest)

		v1.GET("/ledger", ledgerHandler.Info)
		v1.GET("/ledger/balances/:address", ledgerHandler.Balance)
		v1.GET("/ledger/allowances/:owner/:spender", ledgerHandler.Allowance)
		v1.POST("/ledger/transfer", ledgerHandler.Transfer)
		v1.POST("/ledger/transfer-from", ledgerHandler.TransferFrom)
		v1.POST("/ledger/approve", ledgerHandler.Approve)

		if historyStore != nil {
			historyHandler := handler.NewHistoryHandler(historyStore)
			v1.GET("/history/games/:id", historyHandler.GetGame)
			v1.GET("/history/players/:address", historyHandler.ListByPlayer)
		}
	}

	// Admin Routes
	adminGroup := r.Group("/v1/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg))
	adminGroup.Use(middleware.AdminMiddleware(cfg))
	{
		adminGroup.POST("/ledger/roles/grant", ledgerHandler.GrantRole)
		adminGroup.POST("/ledger/roles/revoke", ledgerHandler.RevokeRole)
		adminGroup.POST("/ledger/pause", ledgerHandler.Pause)
		adminGroup.POST("/ledger/unpause", ledgerHandler.Unpause)
	}

	// 7. Retention janitor
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	if janitor != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-janitorCtx.Done():
					return
				case <-ticker.C:
					janitor(janitorCtx)
				}
			}
		}()
	}

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 BiscaGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
