package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/livetranslator/g2link/bluetooth"
	"github.com/livetranslator/g2link/config"
	"github.com/livetranslator/g2link/protocol"
	"github.com/livetranslator/g2link/server"
	"github.com/livetranslator/g2link/utils"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "g2link",
	Short: "g2link - drive Even G2 glasses over BLE",
	Long: `g2link pushes live captions and translations to Even Realities G2
smart glasses. Updates go out as notifications, teleprompter pages or
Even-AI replies, over BlueZ on the system D-Bus.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the session controller and HTTP control server",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Connect, send one update and disconnect",
	Args:  cobra.NoArgs,
	RunE:  runSend,
}

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Print every frame an update produces without touching hardware",
	Long: `frames runs a full session against an in-memory transport with no
pacing and prints each characteristic write as hex, followed by its decoded
header and payload fields.`,
	Args: cobra.NoArgs,
	RunE: runFrames,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Use an in-memory transport instead of BlueZ")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(framesCmd)

	for _, cmd := range []*cobra.Command{sendCmd, framesCmd} {
		cmd.Flags().String("original", "", "Original (source language) text")
		cmd.Flags().String("translated", "", "Translated text")
		cmd.Flags().String("speaker", "", "Speaker label")
		cmd.Flags().String("mode", "", "Override glasses.mode (notification, teleprompter, evenai)")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies command-line overrides and
// installs the default logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	if f := cmd.Flags().Lookup("mode"); f != nil && f.Changed {
		if _, err := bluetooth.ParseMode(f.Value.String()); err != nil {
			return nil, nil, err
		}
		cfg.Glasses.Mode = f.Value.String()
	}

	logger := utils.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newTransport returns BlueZ, or a fake transport that logs each write when
// dry-run is set.
func newTransport(cmd *cobra.Command, logger *slog.Logger) (bluetooth.Transport, error) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		return bluetooth.NewBluezTransport(logger)
	}
	fake := bluetooth.NewFakeTransport()
	fake.OnWrite = func(w bluetooth.Write) {
		logger.Info("dry-run write",
			"address", w.Address,
			"uuid", w.UUID,
			"with_response", w.WithResponse,
			"data", hex.EncodeToString(w.Data))
	}
	logger.Info("dry-run: using in-memory transport")
	return fake, nil
}

func updateFlags(cmd *cobra.Command) (original, translated, speaker string, err error) {
	original, _ = cmd.Flags().GetString("original")
	translated, _ = cmd.Flags().GetString("translated")
	speaker, _ = cmd.Flags().GetString("speaker")
	if original == "" && translated == "" {
		return "", "", "", errors.New("--original or --translated is required")
	}
	return original, translated, speaker, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	logger.Info("starting g2link",
		"mode", cfg.Glasses.Mode,
		"display_format", cfg.Glasses.DisplayFormat,
		"auto_connect", cfg.Glasses.AutoConnect,
		"server", cfg.Server.Enabled,
		"port", cfg.Server.Port)

	wsHub := utils.NewWebSocketHub()
	broadcaster := utils.NewSessionBroadcaster(wsHub, logger)

	var transport bluetooth.Transport
	if cfg.Glasses.Enabled {
		transport, err = newTransport(cmd, logger)
		if err != nil {
			return fmt.Errorf("failed to open transport: %w", err)
		}
	} else {
		logger.Warn("glasses disabled; updates will be dropped")
	}

	manager := bluetooth.NewManager(transport, cfg.Session(),
		bluetooth.WithLogger(logger),
		bluetooth.WithEventSink(broadcaster))
	if cfg.Glasses.Enabled {
		if err := manager.Start(); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		defer manager.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var httpServer *server.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		httpServer = server.NewServer(manager, wsHub, logger)
		go func() {
			serverErr <- httpServer.Start(cfg.Server.Port)
		}()
		logger.Info("control API available",
			"api", fmt.Sprintf("http://localhost:%d/api/", cfg.Server.Port),
			"ws", fmt.Sprintf("ws://localhost:%d/ws", cfg.Server.Port))

		if cfg.Server.Advertise {
			mdns, err := server.Advertise(cfg.Server.Instance, cfg.Server.Port, cfg.Glasses.Mode)
			if err != nil {
				logger.Warn("mDNS advertisement failed", "error", err)
			} else {
				defer mdns.Shutdown()
				logger.Info("advertising via mDNS", "instance", cfg.Server.Instance, "service", server.MDNSService)
			}
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			logger.Error("error stopping HTTP server", "error", serr)
		}
	}
	return err
}

func runSend(cmd *cobra.Command, _ []string) error {
	original, translated, speaker, err := updateFlags(cmd)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	transport, err := newTransport(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to open transport: %w", err)
	}

	sessionCfg := cfg.Session()
	sessionCfg.AutoConnect = false
	manager := bluetooth.NewManager(transport, sessionCfg, bluetooth.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sendOnce(ctx, manager, original, translated, speaker)
}

// sendOnce connects, queues one update and waits until it has been written.
func sendOnce(ctx context.Context, manager *bluetooth.Manager, original, translated, speaker string) error {
	if err := manager.Start(); err != nil {
		return err
	}
	defer manager.Stop()

	if err := manager.Connect(ctx); err != nil {
		return err
	}
	manager.Update(original, translated, speaker)
	if err := manager.Flush(ctx); err != nil {
		return err
	}
	if st := manager.Status(); st.Sent == 0 {
		return fmt.Errorf("update not sent (failed=%d dropped=%d)", st.Failed, st.Dropped)
	}
	return nil
}

func runFrames(cmd *cobra.Command, _ []string) error {
	original, translated, speaker, err := updateFlags(cmd)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	sessionCfg := cfg.Session()
	sessionCfg.AutoConnect = false
	sessionCfg.Pacing = bluetooth.PacingConfig{}

	fake := bluetooth.NewFakeTransport()
	manager := bluetooth.NewManager(fake, sessionCfg, bluetooth.WithLogger(logger))
	if err := sendOnce(cmd.Context(), manager, original, translated, speaker); err != nil {
		return err
	}
	return dumpWrites(cmd.OutOrStdout(), fake.Writes())
}

// dumpWrites prints each write as hex followed by its decoded frame.
func dumpWrites(w io.Writer, writes []bluetooth.Write) error {
	for i, wr := range writes {
		if _, err := fmt.Fprintf(w, "#%02d %s %s % x\n", i, wr.Address, wr.UUID[len(wr.UUID)-4:], wr.Data); err != nil {
			return err
		}
		if bytes.Equal(wr.Data, protocol.HeartbeatPacket()) {
			fmt.Fprintln(w, "    heartbeat")
			continue
		}
		frame, err := protocol.ParsePacket(wr.Data)
		if err != nil {
			fmt.Fprintf(w, "    invalid frame: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "    seq=%d svc=%s frag=%d/%d len=%d\n",
			frame.Seq, frame.Service, frame.FragmentIndex, frame.TotalFragments, len(frame.Payload))
		if fields, err := protocol.ParseFields(frame.Payload); err == nil && len(fields) > 0 {
			fmt.Fprintf(w, "    %s\n", protocol.FormatFields(fields))
		}
	}
	return nil
}
