package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/shortlink/internal/app/server"
	grpcserver "github.com/atinyakov/shortlink/internal/app/server/grpc"
	"github.com/atinyakov/shortlink/internal/app/service"
	"github.com/atinyakov/shortlink/internal/config"
	"github.com/atinyakov/shortlink/internal/logger"
	"github.com/atinyakov/shortlink/internal/repository"
	"github.com/atinyakov/shortlink/internal/storage"
	"github.com/atinyakov/shortlink/internal/worker"

	_ "net/http/pprof"
)

var buildVersion string
var buildDate string
var buildCommit string

const (
	pprofAddr       = "localhost:6060"
	shutdownTimeout = 10 * time.Second
)

func main() {
	options, err := config.Parse()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		panic(err)
	}

	printBuildInfo(os.Stdout)

	log := logger.New()
	if err := log.Init(options.LogLevel, false); err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, options, log.Log); err != nil {
		stop()
		log.Log.Fatal("shortener stopped", zap.Error(err))
	}
}

func printBuildInfo(w io.Writer) {
	na := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	fmt.Fprintf(w, "Build version: %s\n", na(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", na(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", na(buildCommit))
}

// openStorage picks the first configured backend: Postgres, Redis, SQLite,
// file, then memory.
func openStorage(ctx context.Context, options *config.Options, logger *zap.Logger) (service.Storage, error) {
	switch {
	case options.DatabaseDSN != "":
		logger.Info("using postgres")
		return repository.NewPostgres(ctx, options.DatabaseDSN, logger)
	case options.RedisAddr != "":
		logger.Info("using redis", zap.String("addr", options.RedisAddr))
		return repository.NewRedis(ctx, options.RedisAddr, logger)
	case options.SQLitePath != "":
		logger.Info("using sqlite", zap.String("path", options.SQLitePath))
		return repository.NewSQLite(ctx, options.SQLitePath, logger)
	case options.FilePath != "":
		logger.Info("using file", zap.String("filePath", options.FilePath))
		return storage.NewFileStorage(options.FilePath, logger)
	default:
		logger.Info("using in memory storage")
		return storage.CreateMemoryStorage()
	}
}

func run(ctx context.Context, options *config.Options, logger *zap.Logger) error {
	store, err := openStorage(ctx, options, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	generator, err := service.NewCodeGenerator(service.CodeOptions{
		DefaultLength: options.DefaultCodeLength,
		MinLength:     options.MinCodeLength,
		MaxLength:     options.MaxCodeLength,
	})
	if err != nil {
		return err
	}

	var serviceOpts []service.Option
	stopClicks := func() {}
	if options.AsyncClicks {
		w := worker.NewClickWorker(logger, store, worker.DefaultFlushInterval)
		serviceOpts = append(serviceOpts, service.WithClickQueue(w.GetInChannel()))

		// the worker outlives the listeners so late redirects are still counted
		workerCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := w.Run(workerCtx); err != nil {
				logger.Error("click worker stopped", zap.Error(err))
			}
		}()
		stopClicks = func() {
			cancel()
			<-done
		}
	}

	svc := service.NewURL(store, generator, logger, options.ResultHostname, serviceOpts...)

	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:              options.Port,
		Handler:           server.Init(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		return serveHTTP(httpServer, options, logger)
	})
	g.Go(func() error {
		<-ctx.Done()
		return shutdown(httpServer)
	})

	if options.GRPCPort != 0 {
		grpcServer := grpcserver.New(logger, svc, options.GRPCPort)
		g.Go(grpcServer.Start)
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if options.EnablePprof {
		pprofServer := &http.Server{Addr: pprofAddr, Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("Starting pprof server", zap.String("addr", pprofAddr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("pprof server error", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdown(pprofServer)
		})
	}

	err = g.Wait()
	stopClicks()

	if err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func serveHTTP(srv *http.Server, options *config.Options, logger *zap.Logger) error {
	var err error

	if options.EnableHTTPS {
		manager := &autocert.Manager{
			Cache:      autocert.DirCache("cache-dir"),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(certHost(options.ResultHostname)),
		}
		srv.Addr = ":443"
		srv.TLSConfig = manager.TLSConfig()

		logger.Info("Server is running with TLS", zap.String("hostname", options.ResultHostname))
		err = srv.ListenAndServeTLS("", "")
	} else {
		logger.Info("Server is running", zap.String("hostname", options.Port))
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(ctx)
}

// certHost extracts the hostname autocert should request a certificate for.
func certHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return baseURL
	}
	return u.Hostname()
}
