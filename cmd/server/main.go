package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/technoclass/campus-vms/internal/api"
	"github.com/technoclass/campus-vms/internal/config"
	"github.com/technoclass/campus-vms/internal/crypto"
	"github.com/technoclass/campus-vms/internal/data"
	"github.com/technoclass/campus-vms/internal/health"
	"github.com/technoclass/campus-vms/internal/mediamtx"
	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/nvr"
	"github.com/technoclass/campus-vms/internal/onvif"
	"github.com/technoclass/campus-vms/internal/tokens"
)

const serviceName = "campus-vms"

func main() {
	// 1. Config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/default.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}
	if cfg.Secrets.CredentialSecret == "" {
		log.Fatalf("CREDENTIAL_SECRET is required; NVR passwords cannot be stored without it")
	}
	jwtKey := cfg.Secrets.JWTSigningKey
	if jwtKey == "" {
		jwtKey = "dev-secret-do-not-use-in-prod"
		log.Printf("Warning: JWT_SIGNING_KEY not set, using dev key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. DB
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}
	defer db.Close()

	// 3. Components
	box, err := crypto.NewSecretBox(cfg.Secrets.CredentialSecret)
	if err != nil {
		log.Fatalf("SecretBox init error: %v", err)
	}

	nvrRepo := &data.NVRModel{DB: db}
	cameraRepo := &data.CameraModel{DB: db}
	areaRepo := &data.CameraAreaModel{DB: db}

	onvifClient := onvif.NewClient(onvif.NewSOAPFactory())
	onvifClient.Timeout = cfg.OnvifTimeout()
	onvifClient.Concurrency = cfg.Onvif.Concurrency

	prober := health.NewProber()
	executor := mediamtx.NewExecutor()

	svc := nvr.NewService(nvrRepo, cameraRepo, areaRepo, box, onvifClient, prober, executor, nvr.Config{
		WebRTCBaseURL:        cfg.Media.WebRTCBaseURL,
		HLSBaseURL:           cfg.Media.HLSBaseURL,
		DeployEnabled:        cfg.Deploy.Enabled,
		AllowRestartCommands: cfg.Deploy.AllowRestartCommands,
	}, log.Default())

	// Redis-backed deploy-target memory
	svc.SetTargetCache(nvr.NewTargetCache(cfg.Redis.Addr, cfg.Redis.Password))

	// 4. Eventing (optional: the service runs fine without a broker)
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			log.Printf("Warning: NATS connect failed: %v. Eventing disabled.", err)
		} else {
			defer nc.Close()
			svc.SetPublisher(nvr.NewNATSPublisher(nc, cfg.NATS.Subject, cfg.NATS.RetryMax))
			log.Printf("Connected to NATS at %s", cfg.NATS.URL)
		}
	}

	// 5. Background health monitor
	monitor := nvr.NewMonitor(svc, nvrRepo, nvr.MonitorConfig{
		Interval:  cfg.MonitorInterval(),
		Workers:   cfg.Monitor.Workers,
		QueueSize: cfg.Monitor.QueueSize,
	}, log.Default())
	monitor.Start(ctx)

	// 6. Routes
	tokenMgr := tokens.NewManager(jwtKey)
	router := api.NewRouter(api.Handlers{
		Schools: api.NewSchoolHandler(&data.SchoolModel{DB: db}),
		NVRs:    api.NewNVRHandler(svc),
		Cameras: api.NewCameraHandler(svc),
		Areas:   api.NewAreaHandler(areaRepo),
		Auth:    middleware.NewJWTAuth(tokenMgr),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 7. Live reload for feature switches. Endpoint/broker changes
	// still need a restart.
	config.Watch(ctx, cfgPath, func(c config.Config) {
		svc.UpdateConfig(nvr.Config{
			WebRTCBaseURL:        c.Media.WebRTCBaseURL,
			HLSBaseURL:           c.Media.HLSBaseURL,
			DeployEnabled:        c.Deploy.Enabled,
			AllowRestartCommands: c.Deploy.AllowRestartCommands,
		})
		log.Printf("config: reloaded (deploy enabled=%v restart=%v)",
			c.Deploy.Enabled, c.Deploy.AllowRestartCommands)
	})

	go func() {
		log.Printf("%s listening on %s", serviceName, cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
