package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/aradsms/sms_bridge/internal/platform/config"
	"github.com/aradsms/sms_bridge/internal/platform/logger"
	"github.com/aradsms/sms_bridge/internal/platform/messagebroker"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/adapters/nexmo"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/app"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/backend"
)

// env is what the commands operate on.
type env struct {
	cfg        *config.Config
	store      *repository.CorrelationStore
	reconciler *app.NumberReconciler
}

type envOpener func(ctx context.Context, configDir string, log io.Writer) (*env, func(), error)

func newRootCmd(open envOpener) *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "sms_bridge_ctl",
		Short:         "Inspect and maintain the SMS bridge",
		Long:          "Reads the correlation store the bridge service writes: conversation bindings per user, the phone to user index and the receipt hook definition.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "", "Directory containing config.defaults.yaml")

	withEnv := func(run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, closeEnv, err := open(cmd.Context(), configDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeEnv()
			return run(cmd, e, args)
		}
	}

	root.AddCommand(
		newBindingsCmd(withEnv),
		newWhoisCmd(withEnv),
		newHookCmd(withEnv),
		newReconcileCmd(withEnv),
	)
	return root
}

// openEnv loads configuration and opens the configured store. NATS is only
// dialled for the nats backend.
func openEnv(ctx context.Context, configDir string, log io.Writer) (*env, func(), error) {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	appLogger := logger.NewWithWriter(log, "sms_bridge_ctl", cfg.LogLevel)

	var nc *messagebroker.NATSClient
	if cfg.StoreBackend == config.BackendNATS {
		nc, err = messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, "sms_bridge_ctl")
		if err != nil {
			return nil, nil, err
		}
	}
	kv, closeStore, err := backend.Open(ctx, cfg, nc, appLogger)
	if err != nil {
		if nc != nil {
			nc.Close()
		}
		return nil, nil, err
	}

	nexmoClient := nexmo.NewClient(cfg.NexmoBaseURL, cfg.NexmoKey, cfg.NexmoSecret, appLogger)
	e := &env{
		cfg:        cfg,
		store:      repository.NewCorrelationStore(kv, appLogger),
		reconciler: app.NewNumberReconciler(nexmoClient, cfg.NexmoNumbers, cfg.InboundSMSURL(), appLogger),
	}
	return e, func() {
		closeStore()
		if nc != nil {
			nc.Close()
		}
	}, nil
}
