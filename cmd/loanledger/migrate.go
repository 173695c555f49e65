package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"loanledger/internal/audit"
	"loanledger/internal/config"
	"loanledger/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema for the postgres storage driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != "postgres" {
			return fmt.Errorf("migrate requires storage driver %q, have %q", "postgres", cfg.Storage.Driver)
		}

		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		stmts := append(store.Migrations(), audit.Migrations()...)
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}
		fmt.Printf("applied %d statements\n", len(stmts))
		return nil
	},
}
