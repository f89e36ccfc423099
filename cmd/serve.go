package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ingest, match and results HTTP API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from api.addr, then :8080)")
	serveCmd.Flags().String("log-file", "", "write logs to this file instead of stdout")
}

func serve(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	var outputs []string
	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		outputs = append(outputs, logFile)
	}

	logger, config, comps := prepare(ctx, outputs...)
	defer comps.Close()

	apiCfg := config.API
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		apiCfg.Addr = addr
	}

	server, err := api.New(apiCfg, api.Deps{
		Ingester:   comps.ingest,
		Matcher:    comps.matcher,
		Candidates: comps.profiles,
		Results:    comps.repo,
		Logger:     logger,
	}, version)
	if err != nil {
		logger.Fatal("building api server", zap.Error(err))
	}

	if err := server.Listen(ctx); err != nil {
		logger.Fatal("serving api", zap.Error(err))
	}
	logger.Info("api stopped")
}
