// Command mailcapture runs an SMTP server that captures outgoing mail and
// inspects the captured messages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/config"
	_ "github.com/infodancer/mailcapture/filestore"
	_ "github.com/infodancer/mailcapture/maildir"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds state shared by subcommands once flags are parsed.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mailcapture",
		Short:         "Capture outgoing mail during development instead of sending it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFlags(cmd)
			if err != nil {
				return err
			}
			level, err := config.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = setupLogger(cmd.ErrOrStderr(), level)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	config.RegisterFlags(root)

	root.AddCommand(
		newServeCmd(a),
		newCountCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRmCmd(a),
		newPurgeCmd(a),
		newKeygenCmd(),
		newConfigCmd(a),
	)
	return root
}

// setupLogger writes text logs to w so command output on stdout stays clean.
func setupLogger(w io.Writer, level slog.Level) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}

func (a *app) openStore() (mailcapture.CaptureStore, error) {
	store, err := mailcapture.Open(a.cfg.StoreConfig(a.logger))
	if err != nil {
		return nil, fmt.Errorf("open %s store at %s: %w", a.cfg.Store.Type, a.cfg.Store.BasePath, err)
	}
	return store, nil
}
