package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	asynccalc "github.com/xizhibei/go-async-calc"
	"github.com/xizhibei/go-async-calc/demo"
	"github.com/xizhibei/go-async-calc/mqttadapter"
	"github.com/xizhibei/go-async-calc/mqttjson"
	"github.com/xizhibei/go-async-calc/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type config struct {
	broker      string
	serverID    string
	topicPrefix string
	timeout     time.Duration
	debug       bool
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	var cfg config

	fs := flag.NewFlagSet("calcdemo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.broker, "broker", "", "MQTT broker URL, calculate in process when empty")
	fs.StringVar(&cfg.serverID, "server-id", "server-01", "device ID of the calculation server")
	fs.StringVar(&cfg.topicPrefix, "topic-prefix", "calc", "MQTT topic prefix")
	fs.DurationVar(&cfg.timeout, "timeout", 0, "deadline for the whole run, 0 means none")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	encoderConfig := zap.NewProductionEncoderConfig()
	if debug {
		level = zapcore.DebugLevel
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core)
}

// run executes the demo and returns the process exit status.
// Demo lines and an unexpected failure go to stdout, logs go to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	logger := newLogger(stderr, cfg.debug)
	defer logger.Sync()
	restore := zap.ReplaceGlobals(logger)
	defer restore()

	log := logger.Sugar()

	ctx := context.Background()
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	tel, err := telemetry.NewFromEnv(ctx, "calcdemo", version)
	if err != nil {
		log.Warnf("Failed to initialize telemetry, continue without it: %v", err)
		tel = telemetry.NewNoop()
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Errorf("Shutdown telemetry: %v", err)
		}
	}()

	svc, closeSvc, err := newService(ctx, cfg, tel)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	defer closeSvc()

	if err := demo.NewRunner(svc, stdout).Run(ctx); err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	return 0
}

// newService returns the engine in process, or a remote service when a broker is configured.
func newService(ctx context.Context, cfg *config, tel *telemetry.Telemetry) (asynccalc.Service, func(), error) {
	if cfg.broker == "" {
		engine := asynccalc.NewEngine(asynccalc.WithEngineName("calcdemo"))
		engine.SetTelemetry(tel)
		return engine, func() { engine.Close() }, nil
	}

	adapter, err := mqttadapter.New(cfg.broker, "calcdemo-"+uuid.NewString(), mqttadapter.WithDebug(cfg.debug))
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := adapter.Connect(connectCtx); err != nil {
		return nil, nil, errors.Wrapf(err, "connect to broker")
	}

	client := mqttjson.NewClient(adapter, cfg.topicPrefix)
	client.SetTelemetry(tel)
	return mqttjson.NewRemote(client, cfg.serverID), func() { client.Close() }, nil
}
