package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"icecream/config"
	qhttp "icecream/http"
	"icecream/logging"
	"icecream/ml"
	"icecream/monitoring"
	"icecream/service"
)

var serverCommand = &cobra.Command{
	Use:   "icecream",
	Short: "Ice cream sales prediction server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		conf, err := config.LoadConfig(configPath, cmd.PersistentFlags().Changed("config"))
		if err != nil {
			return err
		}
		if cmd.PersistentFlags().Changed("port") {
			conf.HTTP.Port, _ = cmd.PersistentFlags().GetInt("port")
		}
		if debug, _ := cmd.PersistentFlags().GetBool("debug"); debug {
			conf.Log.Debug = true
		}
		if err := conf.Validate(); err != nil {
			return err
		}

		// 2. Setup logger
		logger, err := logging.NewLogger(conf.Log)
		if err != nil {
			return err
		}
		defer logger.Sync()
		if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
			logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
		}
		logger.Info("load config", zap.String("config", configPath), zap.Int("port", conf.HTTP.Port))

		// 3. Train models
		metrics := monitoring.NewMetrics()
		svc := service.Start(service.Options{
			DataPath: conf.Data.Path,
			Forest: ml.ForestOptions{
				Trees:    conf.Model.Trees,
				Seed:     conf.Model.Seed,
				Jobs:     conf.Model.Jobs,
				MaxDepth: conf.Model.MaxDepth,
			},
			CacheSize: conf.Cache.Size,
		}, logger, metrics)

		// 4. Start HTTP server
		handlers := qhttp.NewHandlers(svc, qhttp.StaticConfig{
			Dir:      conf.Data.StaticDir,
			Index:    conf.Data.Index,
			DataPath: conf.Data.Path,
		}, logger, metrics)
		server := qhttp.NewServer(qhttp.ServerConfig{
			Host:           conf.HTTP.Host,
			Port:           conf.HTTP.Port,
			ReadTimeout:    conf.HTTP.ReadTimeout,
			WriteTimeout:   conf.HTTP.WriteTimeout,
			IdleTimeout:    conf.HTTP.IdleTimeout,
			AllowedOrigins: conf.HTTP.AllowedOrigins,
		}, handlers)

		errs := make(chan error, 1)
		go func() {
			errs <- server.Start()
		}()

		// 5. Handle graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errs:
			logger.Error("HTTP server failed", zap.Error(err))
			return err
		case sig := <-quit:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		if err := server.Stop(); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
		}
		logger.Info("exiting")
		return nil
	},
}

func init() {
	serverCommand.PersistentFlags().StringP("config", "c", "config.yaml", "configuration file path")
	serverCommand.PersistentFlags().IntP("port", "p", 0, "listen port, overrides config and PORT")
	serverCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	serverCommand.SilenceUsage = true
}

func main() {
	if err := serverCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
