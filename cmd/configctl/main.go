// Command configctl drives the configuration service the way the main app
// does: every request carries the API key, the caller's user id and a fresh
// HMAC signature.
package main

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ConfigService/pkg/client"
	"ConfigService/pkg/common"
)

var (
	configPath string
	userFlag   string
	verbose    bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "configctl",
	Short:         "Sign requests for and manage home screen configurations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "optional TOML config file; environment variables override it")
	pf.StringVarP(&userFlag, "user", "u", "", "user id to act as (default $CONFIG_USER_ID)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log requests and retries")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "overall time limit for the command")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}

func loadConfig() (common.ClientConfig, error) {
	cfg, err := common.LoadClient(configPath)
	if err != nil {
		return cfg, err
	}
	if userFlag != "" {
		cfg.UserID = userFlag
	}
	return cfg, nil
}

// session is what every API command needs: a client, the acting user and
// a context bounded by --timeout.
type session struct {
	cl     *client.Client
	userID string
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UserID == "" {
		return nil, errors.New("a user id is required: pass --user or set CONFIG_USER_ID")
	}
	cl, err := client.New(client.Options{
		Endpoints:     cfg.Endpoints(),
		APIKey:        cfg.APIKey,
		SigningSecret: cfg.SigningSecret,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = log.Logger.WithContext(ctx)
	return &session{cl: cl, userID: cfg.UserID, ctx: ctx, cancel: cancel}, nil
}
