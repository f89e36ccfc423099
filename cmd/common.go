package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/logger"
	"github.com/spigell/matchai/internal/secrets"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// prepare builds the logger, the config and the components shared by every command. Any failure
// here is fatal.
func prepare(ctx context.Context, logOutputs ...string) (*zap.Logger, *Config, *components) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), logOutputs...)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	comps, err := newComponents(ctx, config, logger)
	if err != nil {
		logger.Fatal("building components", zap.Error(err))
	}
	return logger, config, comps
}

// redacted returns a copy of cfg safe to log.
func redacted(cfg *Config) Config {
	out := *cfg
	out.Database.DSN = secrets.Mask(out.Database.DSN)
	out.Qdrant.APIKey = secrets.Mask(out.Qdrant.APIKey)
	out.Notify.Password = secrets.Mask(out.Notify.Password)
	if out.Redis != nil {
		r := *out.Redis
		r.Password = secrets.Mask(r.Password)
		out.Redis = &r
	}
	if out.AI != nil && out.AI.Gemini != nil {
		a := *out.AI
		g := *a.Gemini
		g.APIKey = secrets.Mask(g.APIKey)
		a.Gemini = &g
		out.AI = &a
	}
	return out
}

// signalContext is cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
