package main

import (
	"context"
	"log/slog"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/handlers/availability"
	"rentalcore/internal/app/handlers/payments"
	"rentalcore/internal/app/handlers/quotes"
	"rentalcore/internal/app/handlers/rentals"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	appoutbox "rentalcore/internal/app/outbox"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/app/schedule"
	"rentalcore/internal/app/uow"
	"rentalcore/internal/domain/fees"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/infra/broker"
	"rentalcore/internal/infra/broker/kafka"
	"rentalcore/internal/infra/broker/local"
	"rentalcore/internal/infra/config"
	mongostore "rentalcore/internal/infra/db/mongo"
	ginserver "rentalcore/internal/infra/http/gin"
	"rentalcore/internal/infra/inbox"
	"rentalcore/internal/infra/obs"
	"rentalcore/internal/infra/outbox"
	"rentalcore/internal/infra/security"
	"rentalcore/internal/infra/storage/memory"
	"rentalcore/internal/infra/storage/s3"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/infra/upstream/catalog"
	"rentalcore/internal/infra/upstream/feeschedule"
	"rentalcore/internal/infra/upstream/slipocr"
	"rentalcore/internal/pkg/clock"
)

const inboxConsumer = "payment-reconciler"

type application struct {
	handlers  ginserver.Handlers
	health    obs.HealthHandlers
	relay     *outbox.Worker
	scheduler *schedule.Scheduler
	consume   func(ctx context.Context) error
	closers   []func(ctx context.Context) error
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i](ctx)
	}
}

// storage groups what the chosen storage mode provides.
type storage struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      interface {
		appoutbox.Outbox
		appoutbox.Relay
	}
	inbox payments.Inbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.Check{}}}
	clk := clock.NewRealClock()

	store, err := buildStorage(ctx, cfg, app, logger)
	if err != nil {
		return nil, err
	}
	cat, payouts, err := buildCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}
	feeSource, err := buildFeeSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	schedules := memory.NewScheduleCache(feeSource, cfg.Cache.FeeScheduleTTL)
	calendars := memory.NewCalendarCache(cfg.Cache.CalendarSize, cfg.Cache.CalendarTTL)
	app.closers = append(app.closers, func(context.Context) error {
		schedules.Stop()
		calendars.Stop()
		return nil
	})
	images, err := buildObjectStore(ctx, cfg, app, logger)
	if err != nil {
		return nil, err
	}
	var slips policies.SlipReader = slipocr.Unconfigured{}
	if cfg.Upstream.SlipOCRURL != "" {
		slips = slipocr.NewClient(upstream.NewRequester("slip-ocr", cfg.Upstream.SlipOCRURL, cfg.Upstream.Timeout, cfg.Upstream.RetryBackoff, logger))
	} else {
		logger.Warn("SLIP_OCR_URL not set, payment slips wait for manual review")
	}

	mutator := support.Mutator{
		UoWFactory: store.factory,
		Outbox:     store.outbox,
		Encoder:    appoutbox.JSONEventEncoder{},
		Clock:      clk,
	}
	resolver := &availability.Resolver{Catalog: cat, Cache: calendars, UoWFactory: store.factory, Clock: clk, Logger: logger}
	pricer := &quotes.Pricer{Catalog: cat, Fees: schedules, Clock: clk}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, rentals.CreateRentalCommand{}.Key(), &rentals.CreateRentalHandler{
		Mutator: mutator, Pricer: pricer, Resolver: resolver, Logger: logger,
	})
	commands.RegisterHandler(commandBus, rentals.ExpireStaleCommand{}.Key(), &rentals.ExpireStaleHandler{Mutator: mutator, Logger: logger})
	commands.RegisterHandler(commandBus, payments.ReconcilePaymentCommand{}.Key(), &payments.Reconciler{
		Mutator: mutator, Slips: slips, Payouts: payouts, Logger: logger,
	})
	(&rentals.Lifecycle{Mutator: mutator, Images: images}).Register(commandBus)
	(&payments.Proofs{Mutator: mutator, Slips: images}).Register(commandBus)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, availability.GetAvailabilityQuery{}.Key(), &availability.GetAvailabilityHandler{Catalog: cat, Resolver: resolver})
	queries.RegisterHandler(queryBus, quotes.GetQuoteQuery{}.Key(), &quotes.GetQuoteHandler{Pricer: pricer, Resolver: resolver, Logger: logger})
	queries.RegisterHandler(queryBus, rentals.GetRentalQuery{}.Key(), &rentals.GetRentalHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, payments.GetReconciliationQuery{}.Key(), &payments.GetReconciliationHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, payments.ListPayoutMethodsQuery{}.Key(), &payments.ListPayoutMethodsHandler{Payouts: payouts})

	commandsWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(middleware.MessageValidator{}),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(store.idempotency, nil),
		middleware.OutboxFlush(store.outbox),
		middleware.Transaction(store.factory, nil),
	)
	queriesWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(middleware.MessageValidator{}),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if !tokens.Configured() {
		logger.Warn("JWT_SECRET not set, every request is anonymous")
	}
	app.handlers = ginserver.Handlers{
		Catalog:        ginserver.CatalogHandler{Queries: queriesWithMiddleware, Logger: logger},
		Rentals:        ginserver.RentalHandler{Commands: commandsWithMiddleware, Queries: queriesWithMiddleware, Logger: logger},
		Payments:       ginserver.PaymentHandler{Commands: commandsWithMiddleware, Queries: queriesWithMiddleware, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Tokens: tokens, Logger: logger}.Handle,
	}

	consumer := &payments.ProofConsumer{Bus: commandsWithMiddleware, Inbox: store.inbox, Logger: logger}
	if err := buildBroker(cfg, app, store, consumer, logger); err != nil {
		return nil, err
	}

	app.scheduler = schedule.New(logger)
	if err := app.scheduler.Add(schedule.ExpireStaleJob(commandsWithMiddleware, cfg.Expiry.Spec, cfg.Expiry.Batch)); err != nil {
		return nil, err
	}
	return app, nil
}

func buildStorage(ctx context.Context, cfg config.Config, app *application, logger *slog.Logger) (storage, error) {
	if cfg.Storage.Mode == config.StorageMemory {
		logger.Info("using in-memory storage")
		return storage{
			factory: memory.Factory{
				RentalsRepo: memory.NewRentalRepository(),
				ReportsRepo: memory.NewReportRepository(),
			},
			idempotency: memory.NewIdempotencyStore(cfg.Storage.IdempotencyTTL),
			outbox:      memory.NewOutbox(),
			inbox:       memory.NewInbox(),
		}, nil
	}

	client, err := mongostore.New(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDB)
	if err != nil {
		return storage{}, err
	}
	app.closers = append(app.closers, client.Close)
	app.health.Checks["mongo"] = client.Ping
	logger.Info("using mongo storage", "database", cfg.Storage.MongoDB)
	return storage{
		factory: mongostore.Factory{
			DB:          client.DB,
			RentalsRepo: mongostore.NewRentalRepository(client.DB),
			ReportsRepo: mongostore.NewReportRepository(client.DB),
		},
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.Storage.IdempotencyTTL),
		outbox:      outbox.NewStore(client.DB),
		inbox:       inbox.NewStore(client.DB, inboxConsumer, cfg.Storage.InboxRetention),
	}, nil
}

type catalogSource interface {
	policies.Catalog
	policies.PayoutDirectory
}

func buildCatalog(cfg config.Config, logger *slog.Logger) (policies.Catalog, policies.PayoutDirectory, error) {
	var src catalogSource
	if cfg.Upstream.CatalogURL != "" {
		src = catalog.NewClient(upstream.NewRequester("catalog", cfg.Upstream.CatalogURL, cfg.Upstream.Timeout, cfg.Upstream.RetryBackoff, logger))
		return src, src, nil
	}
	fixtures := memory.NewCatalog()
	n, err := fixtures.LoadFixtures(cfg.Upstream.CatalogFixtures)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("catalog fixtures loaded", "path", cfg.Upstream.CatalogFixtures, "products", n)
	src = fixtures
	return src, src, nil
}

func buildFeeSource(cfg config.Config, logger *slog.Logger) (fees.ScheduleSource, error) {
	if cfg.Upstream.FeeScheduleURL != "" {
		return feeschedule.NewClient(upstream.NewRequester("fee-schedule", cfg.Upstream.FeeScheduleURL, cfg.Upstream.Timeout, cfg.Upstream.RetryBackoff, logger)), nil
	}
	schedule, err := config.LoadFeeSchedule(cfg.Upstream.FeeScheduleFile)
	if err != nil {
		return nil, err
	}
	logger.Info("static fee schedule loaded", "path", cfg.Upstream.FeeScheduleFile)
	return feeschedule.Static{Schedule: schedule}, nil
}

func buildObjectStore(ctx context.Context, cfg config.Config, app *application, logger *slog.Logger) (policies.ObjectStore, error) {
	if cfg.S3.Endpoint == "" {
		logger.Warn("S3_ENDPOINT not set, uploads are kept in memory")
		return memory.NewObjectStore(), nil
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:       cfg.S3.Endpoint,
		PublicEndpoint: cfg.S3.PublicEndpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		Bucket:         cfg.S3.Bucket,
		UseSSL:         cfg.S3.UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.health.Checks["s3"] = client.Ping
	return client, nil
}

func buildBroker(cfg config.Config, app *application, store storage, handler broker.EventHandler, logger *slog.Logger) error {
	topic := outbox.TopicFor(cfg.Broker.TopicPrefix, domainrental.EventPaymentProofSubmitted)
	relay := &outbox.Worker{
		Store:       store.outbox,
		Logger:      logger,
		Interval:    cfg.Outbox.PollInterval,
		TopicPrefix: cfg.Broker.TopicPrefix,
		Source:      cfg.Outbox.Source,
		Backoff:     cfg.Outbox.RetryBackoff,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	app.relay = relay

	if cfg.Broker.Mode == config.BrokerLocal {
		loop := local.NewLoopback(0)
		loop.Logger = logger
		relay.Producer = loop
		app.consume = func(ctx context.Context) error {
			return loop.Run(ctx, []string{topic}, handler)
		}
		logger.Info("using in-process event loopback", "topic", topic)
		return nil
	}

	producer, err := kafka.NewProducer(cfg.Broker.KafkaBrokers, nil)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	relay.Producer = producer

	consumer, err := kafka.NewConsumer(cfg.Broker.KafkaBrokers, cfg.Broker.GroupID, nil, kafka.CloudEventHandler{Handler: handler, Logger: logger}, logger)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	app.consume = func(ctx context.Context) error {
		return consumer.Run(ctx, []string{topic})
	}
	logger.Info("using kafka", "brokers", cfg.Broker.KafkaBrokers, "topic", topic)
	return nil
}
