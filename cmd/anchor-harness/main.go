package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/config"
)

func newRootCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:           "anchor-harness",
		Short:         "Invoke a deployed program's initialization entry point and report the transaction signature",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	invokeCmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run the invocation harness once against the configured ledger",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.SetValues(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runInvoke(cfg)
		},
	}

	mockLedgerCmd := &cobra.Command{
		Use:   "mock-ledger",
		Short: "Serve an in-process mock validator for local harness runs",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.SetValues(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMockLedger(cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(_ *cobra.Command, _ []string) {
			if config.CommitHash == "" {
				fmt.Printf("anchor-harness dev\n")
			} else {
				// avoid printing the branch for the main branch
				// ( since that's what the end-user would typically have )
				// but keep it for internal build ( so that we'll know from which branch it
				// was built )
				branch := config.Branch
				if branch == "main" {
					branch = ""
				}
				fmt.Printf("anchor-harness %s (%s) %s\n", config.Version, config.CommitHash, branch)
			}
		},
	}

	cmd.AddCommand(invokeCmd)
	cmd.AddCommand(mockLedgerCmd)
	cmd.AddCommand(versionCmd)

	if err := cfg.Init(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func main() {
	var cfg config.Config

	cmd, err := newRootCommand(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not parse config options: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "could not run: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == config.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logrus.NewEntry(logger)
}
