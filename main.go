package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-gateway/domain/repository"
	"social-gateway/infrastructure/cache"
	"social-gateway/infrastructure/clients/threads"
	"social-gateway/infrastructure/clients/twitter"
	"social-gateway/infrastructure/configuration"
	"social-gateway/infrastructure/crypto"
	"social-gateway/infrastructure/logger"
	"social-gateway/infrastructure/persistence"
	"social-gateway/infrastructure/pubsub"
	"social-gateway/infrastructure/servicebus"
	httpHandler "social-gateway/interfaces/http"
	"social-gateway/server"
	"social-gateway/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	cipher, err := crypto.NewTokenCipher(configuration.C.Security.EncryptionKey)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Invalid ENCRYPTION_KEY; cannot store credentials")
		os.Exit(1)
	}

	credentialRepository, err := initiateCredentialStore(cipher)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Credential store initialization failed")
		os.Exit(1)
	}

	// State registry: Redis when available, in-memory fallback otherwise.
	// The fallback is single-instance only and meant for local development.
	var stateRegistry repository.IAuthState
	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - using in-memory state registry")
		stateRegistry = cache.NewMemoryStateRegistry()
	} else {
		logger.GetLogger().Info("Redis client initialized successfully.")
		stateRegistry = cache.NewRedisStateRegistry(redisClient)
	}

	var eventPublisher pubsub.IAuthEventPublisher = pubsub.NopAuthEventPublisher{}
	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("PubSub not available - continuing without connection events")
	} else {
		eventPublisher = pubsub.NewAuthEventPublisher(pubSubClient, configuration.C.Pubsub.Topic)
	}

	var auditSender servicebus.IAuditSender = servicebus.NopAuditSender{}
	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without audit events")
	} else {
		auditSender = servicebus.NewAuditSender(azServiceBusClient, configuration.C.ServiceBus.Queue)
	}

	stateTTL := time.Duration(configuration.C.Security.StateTTLMinutes) * time.Minute

	// Platform lookup table. Adding a platform means one connector here.
	connectors := []repository.IPlatformConnector{
		threads.NewClient(configuration.C.OAuth.Threads),
		twitter.NewClient(configuration.C.OAuth.Twitter),
	}
	authUsecases := make(map[string]usecase.IAuthUsecase, len(connectors))
	socialUsecases := make(map[string]usecase.ISocialUsecase, len(connectors))
	for _, connector := range connectors {
		authUC := usecase.NewAuthUsecase(connector, credentialRepository, stateRegistry, eventPublisher, auditSender, stateTTL)
		authUsecases[connector.Platform()] = authUC
		socialUsecases[connector.Platform()] = usecase.NewSocialUsecase(connector, credentialRepository, authUC)
	}

	authHandler := httpHandler.NewAuthHandler(authUsecases)
	socialHandler := httpHandler.NewSocialHandler(socialUsecases)
	healthHandler := httpHandler.NewHealthHandler()

	router := server.InitiateRouter(authHandler, socialHandler, healthHandler)

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if app.TLSEnabled {
			cert := app.TLSCertFile
			key := app.TLSKeyFile
			if cert == "" || key == "" {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			} else {
				logger.GetLogger().WithFields(map[string]interface{}{"cert": cert, "key": key}).Info("Serving HTTPS")
				if err := httpServer.ListenAndServeTLS(cert, key); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
		} else {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// initiateCredentialStore picks the backing store for encrypted credentials.
// Production (ENV=production or DB_VENDOR=mssql) runs on MSSQL; DB_VENDOR=mongo
// selects MongoDB; everything else uses PostgreSQL.
func initiateCredentialStore(cipher *crypto.TokenCipher) (repository.ICredential, error) {
	env := os.Getenv("ENV")
	vendor := os.Getenv("DB_VENDOR")

	if vendor == "mongo" {
		mongoDb, err := persistence.NewMongoDb(
			configuration.C.Database.Mongo.Host,
			configuration.C.Database.Mongo.Port,
			configuration.C.Database.Mongo.User,
			configuration.C.Database.Mongo.Password,
			configuration.C.Database.Mongo.Name,
		)
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MongoDB (DB_VENDOR=mongo)")
			return nil, err
		}
		logger.GetLogger().Info("MongoDB connected successfully")
		return persistence.NewCredentialRepositoryMongo(mongoDb, cipher), nil
	}

	if vendor == "mssql" || env == "production" || env == "prod" {
		mssql, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, err
		}
		if err := persistence.EnsureCredentialSchemaMSSQL(mssql); err != nil {
			logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
		}
		return persistence.NewCredentialRepositoryMSSQL(mssql, cipher), nil
	}

	postgres, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, err
	}
	logPing(postgres)
	if err := persistence.EnsureCredentialSchema(postgres); err != nil {
		logger.GetLogger().WithField("error", err).Error("failed ensuring credential schema")
	}
	return persistence.NewCredentialRepository(postgres, cipher), nil
}

func logPing(db *sql.DB) {
	logger.GetLogger().WithField("PSQLDb", db.Ping()).Info("Database connected.")
}
