// Command opencloud-sandbox serves an in-memory ordered data store over the
// Open Cloud URL layout, for local development and integration tests.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dogmatiq/ferrite"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/devseed"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore/mock"
)

var registry = ferrite.NewRegistry(
	"opencloud.sandbox",
	"Open Cloud sandbox",
)

var (
	listenAddress = ferrite.
			String("SANDBOX_LISTEN_ADDRESS", "the address on which the sandbox listens").
			WithDefault(":8787").
			Optional(ferrite.WithRegistry(registry))

	apiKey = ferrite.
		String("SANDBOX_API_KEY", "the x-api-key value clients must send; empty disables the check").
		Optional(ferrite.WithRegistry(registry))

	seedPath = ferrite.
			String("SANDBOX_SEED", "path to a JSON seed file for the ordered data store").
			Optional(ferrite.WithRegistry(registry))

	seedUniverse = ferrite.
			Signed[int64]("SANDBOX_UNIVERSE_ID", "universe that seed entries without one are placed in").
			WithDefault(1).
			WithMinimum(1).
			Optional(ferrite.WithRegistry(registry))
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	ferrite.Init(ferrite.WithRegistry(registry))

	addrDefault, _ := listenAddress.Value()
	seedDefault, _ := seedPath.Value()
	keyDefault, _ := apiKey.Value()

	addr := flag.String("addr", addrDefault, "listen address")
	seed := flag.String("seed", seedDefault, "path to JSON seed for the ordered data store")
	key := flag.String("api-key", keyDefault, "required x-api-key value (empty disables the check)")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		logger.Fatal("parse fail flag", zap.Error(err))
	}

	store := mock.New(mock.WithLogger(logger))
	if *seed != "" {
		universe, _ := seedUniverse.Value()
		entries, err := devseed.LoadOrderedSeed(*seed)
		if err != nil {
			logger.Fatal("load seed", zap.Error(err))
		}
		if err := store.Seed(universe, entries); err != nil {
			logger.Fatal("apply seed", zap.Error(err))
		}
		logger.Info("seed loaded", zap.String("path", *seed), zap.Int("entries", len(entries)))
	}

	app := newApp(store, serverConfig{
		apiKey:  *key,
		latency: *latency,
		fail:    failCfg,
	}, logger)

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	logger.Info("opencloud-sandbox listening", zap.String("addr", *addr))
	fmt.Println()
	fmt.Println("export OPENCLOUD_RUNTIME_MODE=http")
	fmt.Printf("export OPENCLOUD_BASE_URL=http://%s\n", host)
	if *key != "" {
		fmt.Printf("export OPENCLOUD_API_KEY=%s\n", *key)
	} else {
		fmt.Println("export OPENCLOUD_API_KEY=sandbox")
	}
	fmt.Println()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(*addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
