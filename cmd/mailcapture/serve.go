package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/emersion/go-smtp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/infodancer/mailcapture"
	"github.com/infodancer/mailcapture/filestore"
	"github.com/infodancer/mailcapture/smtpsink"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an SMTP server that captures every message it receives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			smtpCfg := a.cfg.SMTPConfig()
			if addr, _ := flags.GetString("addr"); addr != "" {
				smtpCfg.Addr = addr
			}
			if domain, _ := flags.GetString("domain"); domain != "" {
				smtpCfg.Domain = domain
			}
			watch, _ := flags.GetBool("watch")
			if !flags.Changed("watch") {
				if v, ok := a.cfg.Store.Options["watch"]; ok {
					parsed, err := strconv.ParseBool(v)
					if err != nil {
						return fmt.Errorf("store option watch: %w", err)
					}
					watch = parsed
				}
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, store, smtpCfg, watch)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default "+smtpsink.DefaultAddr+")")
	cmd.Flags().String("domain", "", "Domain announced in the SMTP greeting")
	cmd.Flags().Bool("watch", false, "Notice captures written by other processes (file store only)")
	return cmd
}

func (a *app) serve(ctx context.Context, store mailcapture.CaptureStore, smtpCfg smtpsink.Config, watch bool) error {
	var watcher *filestore.Watcher
	if watch {
		target, ok := store.(filestore.Invalidator)
		if !ok || a.cfg.Store.Type != "file" {
			return fmt.Errorf("--watch requires the file store, have %q", a.cfg.Store.Type)
		}
		w, err := filestore.NewWatcher(a.cfg.Store.BasePath, target, a.logger)
		if err != nil {
			return err
		}
		watcher = w
	}

	group, groupCtx := errgroup.WithContext(ctx)
	srv := smtpsink.NewServer(groupCtx, smtpCfg, store, a.logger)

	group.Go(func() error {
		a.logger.Info("starting SMTP server",
			"addr", srv.Addr,
			"domain", srv.Domain,
			"store", a.cfg.Store.Type,
			"dir", a.cfg.Store.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			return fmt.Errorf("smtp server: %w", err)
		}
		return nil
	})

	if watcher != nil {
		group.Go(func() error {
			defer func() { _ = watcher.Close() }()
			a.logger.Info("watching capture directory", "dir", a.cfg.Store.BasePath)
			return watcher.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		a.logger.Info("shutting down")
		if err := srv.Close(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			return err
		}
		return nil
	})

	return group.Wait()
}
