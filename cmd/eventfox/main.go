package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/EventFox/app/controllers"
	"github.com/ManuelReschke/EventFox/internal/pkg/archive"
	"github.com/ManuelReschke/EventFox/internal/pkg/cache"
	"github.com/ManuelReschke/EventFox/internal/pkg/coalesce"
	"github.com/ManuelReschke/EventFox/internal/pkg/database"
	"github.com/ManuelReschke/EventFox/internal/pkg/env"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/gateway"
	"github.com/ManuelReschke/EventFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/EventFox/internal/pkg/mail"
	"github.com/ManuelReschke/EventFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/EventFox/internal/pkg/router"
	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		jobqueue.GetManager().Stop()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	appURL := env.GetEnv("APP_URL", "http://localhost:4000")
	creds := payment.LoadCredentials()
	if !creds.Active().IsConfigured() {
		log.Printf("Warning: %s payment credentials are not configured", creds.Active().Label)
	}

	repo := fulfillment.NewRepository(database.GetDB())
	engine := fulfillment.NewEngine(repo, appURL)
	counters := counter.NewPayments(cache.GetClient())
	gw := gateway.NewClient(nil)

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	processor := webhook.NewProcessor(repo, engine, creds, newCoalescer()).
		WithNotifier(jobqueue.NewPaymentNotifier(queue)).
		WithCounters(counters)

	job := reconcile.NewJob(gw, repo, reconcile.NewHTTPReplayer(appURL, nil), creds).
		WithConcurrency(env.GetEnvInt("PAYMENT_REPLAY_CONCURRENCY", reconcile.DefaultConcurrency)).
		WithDeadline(time.Duration(env.GetEnvInt("PAYMENT_RECONCILE_DEADLINE_MINUTES", int(reconcile.DefaultDeadline/time.Minute)))*time.Minute).
		WithCounters(counters)
	if archiver := newArchiver(); archiver != nil {
		job.WithArchiver(archiver)
	}

	queue.RegisterHandler(jobqueue.JobTypePaymentNotification, jobqueue.NotificationHandler(mail.SendMail))
	queue.RegisterHandler(jobqueue.JobTypePaymentReconcile, jobqueue.ReconcileHandler(job))
	manager.Start()

	controllers.InitializePaymentController(controllers.PaymentDeps{
		Processor:   processor,
		Reconciler:  job,
		Ledger:      gw,
		Gateway:     gw,
		Catalog:     engine,
		Counters:    counters,
		Jobs:        queue,
		Credentials: creds,
		Currency:    env.GetEnv("PAYMENT_CURRENCY", "EUR"),
	})

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if !mountMetrics(app, env.GetEnv("METRICS_USER", "admin"), env.GetEnv("METRICS_PASSWORD", "")) {
		log.Println("Metrics endpoint disabled: METRICS_PASSWORD is not set")
	}

	// SWAGGER / OPENAPI
	if path := openAPIPath(); path != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: path,
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app)

	return app
}

// mountMetrics serves the fiber monitor behind basic auth. Without a password
// the route is not registered at all.
func mountMetrics(app *fiber.App, user, password string) bool {
	if password == "" {
		return false
	}
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{user: password},
	}), monitor.New())
	return true
}

// newCoalescer picks the coalescing backend. Redis shares outcomes across
// instances; memory is enough for a single process.
func newCoalescer() coalesce.Cache[webhook.Outcome] {
	switch env.GetEnv("PAYMENT_COALESCE_BACKEND", "memory") {
	case "redis":
		log.Println("Payment coalescing: redis")
		return coalesce.NewRedis[webhook.Outcome](cache.GetClient(), "payment:coalesce", coalesce.DefaultTTL)
	default:
		log.Println("Payment coalescing: memory")
		return coalesce.NewMemory[webhook.Outcome](coalesce.DefaultTTL)
	}
}

func newArchiver() reconcile.Archiver {
	cfg, err := archive.LoadConfig()
	if err != nil {
		log.Printf("Ledger archive disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := archive.NewClient(ctx, cfg)
	if err != nil {
		log.Printf("Ledger archive disabled: %v", err)
		return nil
	}
	return client
}

func openAPIPath() string {
	for _, base := range []string{"./", "../../", "../../../"} {
		p := base + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
