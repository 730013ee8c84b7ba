package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	asynccalc "github.com/xizhibei/go-async-calc"
	"github.com/xizhibei/go-async-calc/mqttadapter"
	"github.com/xizhibei/go-async-calc/mqttjson"
	"github.com/xizhibei/go-async-calc/telemetry"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	brokerURL := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	serverID := flag.String("server-id", "server-01", "device ID requests are addressed to")
	topicPrefix := flag.String("topic-prefix", "calc", "MQTT topic prefix")
	httpAddr := flag.String("http-addr", ":9090", "address serving /metrics and /healthz")
	workers := flag.Int("workers", 0, "number of calculation workers, 0 means one per CPU")
	timeout := flag.Duration("timeout", 5*time.Second, "timeout of a single calculation")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger, _ := zap.NewProduction()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewFromEnv(ctx, "calcserver", version)
	if err != nil {
		log.Warnf("Failed to initialize telemetry, continue without it: %v", err)
		tel = telemetry.NewNoop()
	}

	engineOptions := []asynccalc.EngineOption{
		asynccalc.WithEngineName(*serverID),
		asynccalc.WithTimeout(*timeout),
		asynccalc.WithLogResult(*debug),
	}
	if *workers > 0 {
		engineOptions = append(engineOptions, asynccalc.WithWorkerNum(*workers))
	}
	engine := asynccalc.NewEngine(engineOptions...)
	engine.SetTelemetry(tel)

	registry := prometheus.NewRegistry()
	responseTime, errorCount := newMetrics(registry)
	engine.RegisterMetrics(responseTime, errorCount)

	statusTopic := path.Join(*topicPrefix, *serverID, "status")
	mqttClient, err := mqttadapter.New(
		*brokerURL,
		"calcserver-"+uuid.NewString(),
		mqttadapter.WithDebug(*debug),
		mqttadapter.WithStatus(statusTopic, []byte("online"), statusTopic, []byte("offline")),
	)
	if err != nil {
		log.Fatalf("Failed to create MQTT client: %v", err)
	}

	server := mqttjson.NewServer(mqttClient, *topicPrefix, *serverID, engine, validator.New())
	log.Infof("Serving calculations on %s", path.Join(*topicPrefix, *serverID, "request", "+"))

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           newRouter(server, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("HTTP listening on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown HTTP server: %v", err)
	}
	if err := server.Close(); err != nil {
		log.Errorf("Close server: %v", err)
	}
	if err := engine.Close(); err != nil {
		log.Errorf("Close engine: %v", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown telemetry: %v", err)
	}
}
