package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/convkit/convertor/internal/cache"
	"github.com/convkit/convertor/internal/config"
	"github.com/convkit/convertor/internal/httpapi"
	"github.com/convkit/convertor/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logging.Log.Fatalf("加载配置失败: %v", err)
		}

		var rdb *redis.Client
		if cfg.Redis != nil {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
		}

		c := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL.Std(), rdb)
		api, err := httpapi.NewServer(cfg, c, httpapi.Options{
			FetchTimeout: cfg.Cache.FetchTimeout.Std(),
		})
		if err != nil {
			logging.Log.Fatalf("初始化服务失败: %v", err)
		}

		srv := &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           httpapi.NewHandler(api),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
		}

		logging.Log.Infof("listening on http://%s", cfg.Server.Listen)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			logging.Log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
			defer cancel()
			if err := srv.Shutdown(shCtx); err != nil {
				logging.Log.Errorf("graceful shutdown failed: %v", err)
				_ = srv.Close()
			}

			err := <-errCh
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Log.Fatal(err)
			}
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Log.Fatal(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
