package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/storefront/docs"
	"github.com/MikeMC777/storefront/internal/booking"
	"github.com/MikeMC777/storefront/internal/cart"
	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/checkout"
	"github.com/MikeMC777/storefront/internal/config"
	"github.com/MikeMC777/storefront/internal/db"
	"github.com/MikeMC777/storefront/internal/events"
	"github.com/MikeMC777/storefront/internal/feedback"
	"github.com/MikeMC777/storefront/internal/grpcx"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/logx"
	"github.com/MikeMC777/storefront/internal/offer"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/pricing"
	"github.com/MikeMC777/storefront/internal/ratelimit"
	"github.com/MikeMC777/storefront/internal/user"
)

// @title        storefront
// @version      1.0
// @description  Restaurant storefront: menu, offers, session cart, checkout and order tracking.

// @host      localhost:8080
// @BasePath  /

// app holds the wired services; every field is ready to use after buildApp.
type app struct {
	catalog   catalog.Repository
	engine    *offer.Engine
	pricer    *pricing.Calculator
	carts     cart.Store
	ledger    *order.Ledger
	checkout  *checkout.Service
	bookings  *booking.Service
	feedback  *feedback.Service
	limiter   ratelimit.Limiter
	publisher events.Publisher
	clock     func() time.Time
	log       zerolog.Logger
	cartTTL   time.Duration

	pool *pgxpool.Pool // nil in memory mode
	rdb  *redis.Client // nil without REDIS_ADDR
}

type stores struct {
	catalog  catalog.Repository
	orders   order.Store
	users    user.Repository
	bookings booking.Repository
	feedback feedback.Repository
}

func memoryStores() stores {
	return stores{
		catalog:  catalog.NewMemStore(),
		orders:   order.NewMemStore(),
		users:    user.NewMemRepo(),
		bookings: booking.NewMemRepo(),
		feedback: feedback.NewMemRepo(),
	}
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		catalog:  catalog.NewPGRepo(pool),
		orders:   order.NewPGStore(pool),
		users:    user.NewPGRepo(pool),
		bookings: booking.NewPGRepo(pool),
		feedback: feedback.NewPGRepo(pool),
	}
}

// newApp wires the services on top of already chosen backends.
func newApp(cfg config.Config, st stores, carts cart.Store, limiter ratelimit.Limiter, pub events.Publisher, log zerolog.Logger) *app {
	engine := offer.NewEngine(st.catalog)
	pricer := pricing.NewCalculator(st.catalog, engine)
	ledger := order.NewLedger(st.orders, cfg.Location)
	return &app{
		catalog: st.catalog,
		engine:  engine,
		pricer:  pricer,
		carts:   carts,
		ledger:  ledger,
		checkout: checkout.NewService(carts, pricer, ledger,
			checkout.WithMaxAttempts(cfg.CheckoutMaxAttempts),
			checkout.WithLogger(log),
			checkout.WithPublisher(pub),
			checkout.WithUsers(user.NewService(st.users)),
		),
		bookings:  booking.NewService(st.bookings, cfg.Location),
		feedback:  feedback.NewService(st.feedback),
		limiter:   limiter,
		publisher: pub,
		clock:     time.Now,
		log:       log,
		cartTTL:   cfg.CartTTL,
	}
}

func buildApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	var (
		st   stores
		pool *pgxpool.Pool
	)
	switch cfg.StorageDriver {
	case "memory":
		st = memoryStores()
		if cfg.SeedFile != "" {
			seed, err := catalog.LoadSeedFile(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := catalog.ApplySeed(ctx, st.catalog, seed); err != nil {
				return nil, fmt.Errorf("apply seed: %w", err)
			}
			log.Info().Str("file", cfg.SeedFile).Msg("[catalog] seed applied")
		}
	case "postgres":
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			return nil, err
		}
		var err error
		if pool, err = db.Connect(ctx, cfg.PostgresDSN); err != nil {
			return nil, err
		}
		st = postgresStores(pool)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	var (
		carts   cart.Store
		limiter ratelimit.Limiter
		rdb     *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		carts = cart.NewRedisStore(rdb, cfg.CartTTL)
		limiter = ratelimit.NewRedisFixedWindow(rdb, "ratelimit:checkout", cfg.CheckoutRateLimit, time.Minute)
	} else {
		carts = cart.NewMemStore()
		limiter = ratelimit.NewMemFixedWindow(cfg.CheckoutRateLimit, time.Minute)
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaOrderTopic}, log)
	}

	a := newApp(cfg, st, carts, limiter, pub, log)
	a.pool, a.rdb = pool, rdb
	return a, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close publisher")
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(a.log), httpx.Recover(a.log), httpx.Session(a.cartTTL))

	r.GET("/healthz", healthHandler)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/menu", listMenuHandler(a.catalog, a.engine, a.clock))
	r.GET("/menu/:item_id", getMenuItemHandler(a.catalog, a.engine, a.clock))
	r.GET("/categories", listCategoriesHandler(a.catalog))
	r.GET("/offers", listOffersHandler(a.catalog, a.clock))

	r.GET("/cart", viewCartHandler(a.carts, a.pricer, a.clock))
	r.POST("/cart/items/:item_id", addToCartHandler(a.carts, a.catalog, a.pricer, a.clock))
	r.PUT("/cart/items/:item_id", updateCartHandler(a.carts, a.pricer, a.clock))
	r.DELETE("/cart/items/:item_id", removeFromCartHandler(a.carts, a.pricer, a.clock))

	r.POST("/checkout", ratelimit.Middleware(a.limiter, httpx.SessionID, a.log), checkoutHandler(a.checkout))
	r.GET("/orders/user/:user_id", listUserOrdersHandler(a.ledger))
	r.GET("/orders/:number", getOrderHandler(a.ledger))
	r.PUT("/orders/:number/status", updateOrderStatusHandler(a.ledger, a.publisher, a.clock))
	r.PUT("/orders/:number/payment-status", updatePaymentStatusHandler(a.ledger, a.publisher, a.clock))

	r.POST("/bookings", createBookingHandler(a.bookings))
	r.POST("/feedback", createFeedbackHandler(a.feedback))
	r.GET("/feedback", listFeedbackHandler(a.feedback))
	return r
}

func main() {
	cfg := config.Load()
	log := logx.New(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	var pinger grpcx.Pinger
	if a.pool != nil {
		pinger = a.pool
	}
	health := grpcx.New(pinger, 15*time.Second, log)
	go health.Watch(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http serve")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	health.Stop()
	log.Info().Msg("closed completed")
}
