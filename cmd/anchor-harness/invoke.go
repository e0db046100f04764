package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/config"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/harness"
	"github.com/fashion-market/anchor-harness/cmd/anchor-harness/internal/journal"
)

func runInvoke(cfg *config.Config) error {
	logger := newLogger(cfg)

	var j *journal.Journal
	if cfg.JournalDBPath != "" {
		var err error
		if j, err = journal.Open(cfg.JournalDBPath); err != nil {
			return err
		}
		defer j.Close()
	}

	h := harness.New(harness.Options{
		RPCURL:          cfg.RPCURL,
		WalletPath:      cfg.WalletPath,
		WorkspacePath:   cfg.WorkspacePath,
		ProgramName:     cfg.ProgramName,
		Commitment:      cfg.Commitment,
		RequestTimeout:  cfg.RequestTimeout,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		ConfirmInterval: cfg.ConfirmInterval,
		MinNodeVersion:  cfg.MinNodeVersion,
		Logger:          logger,
		Registry:        prometheus.NewRegistry(),
		Journal:         j,
	})
	defer h.Close()

	sig, err := h.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Your transaction signature %s\n", sig)
	return nil
}
