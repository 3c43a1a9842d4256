package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/gracepoint/registration-gateway/internal/config"
	"github.com/gracepoint/registration-gateway/internal/handler"
	"github.com/gracepoint/registration-gateway/internal/platform"
	"github.com/gracepoint/registration-gateway/internal/queue"
	"github.com/gracepoint/registration-gateway/internal/router"
	queue_publisher "github.com/gracepoint/registration-gateway/internal/service"
	"github.com/gracepoint/registration-gateway/internal/store"
	"github.com/gracepoint/registration-gateway/internal/utils"
)

func main() {
	_ = godotenv.Load() // load .env when present; real env wins
	cfg := config.Load()

	// Session bus: Redis when reachable, otherwise the in-process store.
	// Single-process deployments keep the same at-most-once capture
	// semantics on the fallback.
	var kv store.KV
	if client := config.NewRedisClient(); client != nil {
		kv = store.NewRedisKV(client)
	} else {
		log.Printf("redis unavailable; using in-process session store")
		kv = store.NewMemoryKV()
	}
	bus := store.NewBus(kv)

	api := platform.NewClient(cfg.APIBase)
	localize := utils.NewLocalizer(cfg.DefaultLocale, cfg.DefaultLocale, nil)
	h := handler.NewRegistrationHandler(api, bus, queue_publisher.Publisher{}, cfg.MediaBase, localize)

	// Background audit consumer for captured registrations.
	go func() {
		if err := queue.StartCapturedConsumer(); err != nil {
			log.Printf("captured-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterRegistration(e, h, cfg.JWTSecret, cfg.AuthBypass, cfg.BypassUserID)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
