package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/respd/internal/admin"
	"github.com/luma/respd/internal/env"
	"github.com/luma/respd/storage"
	"github.com/luma/respd/transport"
)

var (
	// The address to listen for RESP clients on, overrides RESPD_ADDR
	addr string

	// The address to listen for http requests on, overrides RESPD_HTTP_ADDR
	httpAddr string
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.StringVarP(&addr, "addr", "a", "", "The host:port to listen for client connections on")
	flags.StringVar(&httpAddr, "http-addr", "", "The host:port to listen to HTTP requests on")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the respd server",
	Long: `Start up the respd server

Usage
	respd start [--addr host:port] [--http-addr host:port]

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		if addr != "" {
			conf.Addr = addr
		}
		if httpAddr != "" {
			conf.HTTPAddr = httpAddr
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() // nolint:errcheck

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		store := storage.NewInmemoryStore()
		defer store.Close()

		if conf.SeedFile != "" {
			if err := seedStore(store, conf.SeedFile); err != nil {
				return err
			}

			log.Info("Seeded store", zap.String("file", conf.SeedFile), zap.Int("keys", store.Len()))
		}

		tcp := transport.NewTCP(transport.Options{
			Addr:           conf.Addr,
			Reuseport:      conf.Reuseport,
			NumListeners:   conf.Listeners,
			MaxConnections: conf.MaxConnections,
			MaxDepth:       conf.MaxDepth,
			MaxUnitSize:    conf.MaxUnitSize,
			Store:          store,
			Log:            log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		var s *http.Server
		if conf.HTTPAddr != "" {
			s = &http.Server{
				Addr: conf.HTTPAddr,
				Handler: admin.NewRouter(admin.Options{
					Stats: tcp,
					Store: tcp.Store(),
					Debug: conf.DebugHTTP,
					Log:   log.Named("http"),
				}),
			}

			// Initializing the server in a goroutine so that
			// it won't block the graceful shutdown handling below
			go func() {
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.Stringer("addr", tcp.Addr()))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if s != nil {
			// The context is used to inform the server it has 5 seconds to finish
			// the request it is currently handling
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)

			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func seedStore(store storage.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return store.Restore(data)
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
