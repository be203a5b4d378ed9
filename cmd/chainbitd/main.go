// Command chainbitd runs a chainbit node: either the server subcommand
// (the RPC/mempool/executor pipeline) or the client subcommand (the demo
// signer loop).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainbit-io/chainbit/internal/chainspec"
	"github.com/chainbit-io/chainbit/internal/client"
	"github.com/chainbit-io/chainbit/internal/core"
	"github.com/chainbit-io/chainbit/internal/report"
	"github.com/chainbit-io/chainbit/internal/server"
	"github.com/chainbit-io/chainbit/internal/shutdown"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	if err := newRootCmd(log).Execute(); err != nil {
		log.WithError(err).Error("chainbitd: fatal error")
		os.Exit(1)
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "chainbitd",
		Short: "A minimal single-node blockchain node",
	}
	root.AddCommand(newServerCmd(log))
	root.AddCommand(newClientCmd(log))
	return root
}

func newServerCmd(log *logrus.Logger) *cobra.Command {
	var (
		specPath        string
		port            uint16
		coinbaseHex     string
		databaseDump    string
		debug           bool
		reportFrequency uint
		blockTime       uint
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the chainbit node server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(logrus.DebugLevel)
			}

			spec, err := loadSpec(specPath)
			if err != nil {
				return err
			}

			coinbase, err := parseCoinbase(coinbaseHex)
			if err != nil {
				return err
			}

			if databaseDump != "" {
				if err := os.MkdirAll(databaseDump, 0o755); err != nil {
					return fmt.Errorf("chainbitd: create database-dump directory: %w", err)
				}
			}

			cfg := server.Config{
				Port:      port,
				Coinbase:  coinbase,
				BlockTime: time.Duration(blockTime) * time.Second,
				Spec:      spec,
				BlackList: server.NewBlackList(),
			}
			srv := server.New(cfg, log)
			if err := srv.Run(); err != nil {
				return err
			}

			reportFabric := shutdown.New()
			reporter := report.New(srv.DB(), time.Duration(reportFrequency)*time.Second, log.WithField("component", "report"))
			go reporter.Run(reportFabric.NewHandle())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			sig := <-sigCh
			log.WithField("signal", sig.String()).Info("chainbitd: received shutdown signal")

			reportFabric.Begin()
			reportFabric.Wait()
			srv.Shutdown()

			if databaseDump != "" {
				if err := srv.DB().Dump(databaseDump); err != nil {
					log.WithError(err).Error("chainbitd: database dump failed")
					return err
				}
				log.WithField("dir", databaseDump).Info("chainbitd: database dump written")
			}

			log.Info("chainbitd: shut down gracefully")
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "path to chainspec JSON (optional; defaults to the built-in dev spec)")
	cmd.Flags().Uint16Var(&port, "port", 8545, "TCP port to listen on")
	cmd.Flags().StringVar(&coinbaseHex, "coinbase", "", "0x-prefixed coinbase address (default zero)")
	cmd.Flags().StringVar(&databaseDump, "database-dump", "", "directory to write database.json to on clean shutdown")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().UintVar(&reportFrequency, "report-frequency", 30, "reporter interval in seconds")
	cmd.Flags().UintVar(&blockTime, "block-time", 10, "executor tick interval in seconds")

	return cmd
}

func newClientCmd(log *logrus.Logger) *cobra.Command {
	var port uint16
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run the demo signer loop against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			addr := fmt.Sprintf("localhost:%d", port)
			return client.Run(ctx, addr, log)
		},
	}
	cmd.Flags().Uint16Var(&port, "port", 8545, "server port to connect to")
	return cmd
}

func loadSpec(path string) (*chainspec.ChainSpec, error) {
	if path == "" {
		return chainspec.Default()
	}
	return chainspec.Load(path)
}

func parseCoinbase(s string) (core.Address, error) {
	if s == "" {
		return core.ZeroAddress, nil
	}
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 20 {
		return core.Address{}, fmt.Errorf("chainbitd: invalid --coinbase address %q", s)
	}
	var addr core.Address
	copy(addr[:], b)
	return addr, nil
}
