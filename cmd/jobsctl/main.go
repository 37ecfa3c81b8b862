// Command jobsctl administers a job store: migrations, rule changes and
// queue items. It does not run jobs; job implementations live in the
// processes that run a scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-recurring-jobs/pkg/config"
	"github.com/jdziat/simple-recurring-jobs/pkg/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	dsn        string
	driver     string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "jobsctl",
		Short: "Administer a recurring job store",
		Long: `jobsctl: administer a recurring job store

Inspect registered jobs, change their recurrence rules and manage the work
items of queue-driven jobs. Settings come from --config (TOML), JOBS_*
environment variables and the flags below.

Examples:
  jobsctl migrate                                # Create the tables
  jobsctl jobs list                              # Show every registered job
  jobsctl jobs set-rule reports.nightly 02:30:00 # Change a job's rule
  jobsctl queue enqueue mailer bob@example.com   # Add a work item
  jobsctl queue list --status failed             # Show parked items
  jobsctl queue retry <item-id>                  # Give an item new attempts`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a TOML config file")
	root.PersistentFlags().StringVar(&a.dsn, "dsn", "", "Database DSN (overrides config)")
	root.PersistentFlags().StringVar(&a.driver, "driver", "", "Database driver: sqlite or postgres (overrides config)")

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.jobsCmd())
	root.AddCommand(a.queueCmd())
	return root
}

// open loads the configuration and connects to the store.
func (a *app) open() (*storage.GormStorage, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.driver != "" {
		cfg.Database.Driver = a.driver
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	return storage.OpenStorage(cfg.Database.Storage())
}

func closeStore(s *storage.GormStorage) {
	if sqlDB, err := s.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}
