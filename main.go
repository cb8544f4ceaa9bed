package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	config "github.com/phillip/crowdfund-backend/config"
	notify "github.com/phillip/crowdfund-backend/notify"
	payments "github.com/phillip/crowdfund-backend/payments"
	routes "github.com/phillip/crowdfund-backend/routes"
	store "github.com/phillip/crowdfund-backend/store"
	sweeper "github.com/phillip/crowdfund-backend/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := cfg.MongoClient.Database(cfg.DBName)
	campaigns := store.NewMongoCampaignStore(db)
	contributions := store.NewMongoContributionStore(db)
	users := store.NewMongoUserStore(db)

	var notifier notify.Notifier = notify.NewMailer()
	if os.Getenv("ZEPTO_API_KEY") == "" {
		log.Println("Mail not configured, notifications disabled")
		notifier = notify.Noop{}
	}

	engine := payments.NewEngine(contributions, campaigns)
	dispatcher := payments.NewDispatcher(engine, campaigns, users, notifier)

	sw := sweeper.New(sweeper.Config{
		ExpirationInterval: cfg.SweeperExpirationInterval,
		RetentionInterval:  cfg.SweeperRetentionInterval,
		RetentionWindow:    cfg.RetentionWindow,
		AbandonmentWindow:  cfg.AbandonmentWindow,
	}, campaigns, contributions)
	sw.Start()

	r := gin.Default()
	r.Use(cors.Default())
	routes.SetupRoutes(r, cfg, routes.Deps{
		Campaigns:     campaigns,
		Contributions: contributions,
		Engine:        engine,
		Dispatcher:    dispatcher,
		Sweeper:       sw,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	sw.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if err := cfg.MongoClient.Disconnect(ctx); err != nil {
		log.Printf("mongo disconnect: %v", err)
	}
}
