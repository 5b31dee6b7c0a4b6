package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/mailbackup/api"
	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/internal/cron"
	"github.com/customeros/mailbackup/internal/listeners"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cron.NewCronManager(cfg, appLogger, kubernetesClient(appLogger), svcs.SyncService),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster, which runs the cron without leader election.
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	k8sConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		log.Warnf("Cannot create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) Initialize() error {
	log.Println("Registering event listeners...")
	err := s.services.EventsService.RegisterListeners(
		listeners.NewSyncRequestedListener(s.log, s.services.SyncService),
	)
	if err != nil {
		return err
	}

	api.RegisterRoutes(s.router, s.services, s.repositories, s.config.AppConfig.APIKey, s.config.SyncConfig.RunHistoryLimit)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("❌ Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	if err := s.Initialize(); err != nil {
		return err
	}

	log.Println("Starting cron manager...")
	s.wrapGoroutine("cron_manager", func() {
		if err := s.cronManager.Start(os.Getenv("POD_NAME"), os.Getenv("POD_NAMESPACE")); err != nil {
			log.Printf("❌ Cron manager error: %v", err)
		}
	})

	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	})
	log.Println("✅ HTTP server started successfully")
	log.Println("Mailbackup is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ HTTP server shutdown error: %v", err)
	} else {
		log.Println("✅ HTTP server shut down successfully")
	}

	log.Println("Stopping cron manager...")
	stopDone := make(chan struct{})
	go s.wrapGoroutine("cron_shutdown", func() {
		defer close(stopDone)
		s.cronManager.Stop()
	})

	select {
	case <-stopDone:
		log.Println("✅ Cron manager stopped")
	case <-time.After(10 * time.Second):
		log.Println("⚠️ Cron manager stop timed out, forcing exit")
	}

	if err := s.services.Close(); err != nil {
		log.Printf("❌ Events shutdown error: %v", err)
	}
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	return nil
}
