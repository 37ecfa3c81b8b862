package main

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
)

func (a *app) jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect registered jobs and change their rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered jobs with their schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			records, err := store.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				pterm.Info.WithWriter(cmd.OutOrStdout()).Println("No jobs registered")
				return nil
			}

			data := pterm.TableData{{"TYPE ID", "NAME", "GROUP", "QUEUE", "RULE", "LAST RUN", "NEXT RUN"}}
			for _, rec := range records {
				data = append(data, []string{
					rec.TypeID,
					rec.Name,
					rec.ExtensionGroup,
					strconv.FormatBool(rec.DependsOnQueue),
					rec.Recurrence,
					formatTime(rec.LastExecuted),
					rec.NextExecuting.Format(time.DateTime),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(cmd.OutOrStdout()).Render()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-rule <type-id> <rule>",
		Short: "Replace the recurrence rule of a job",
		Long: `Replace the recurrence rule of a job.

Rules: seconds ("3600"), daily "HH:mm:ss", monthly "dd HH:mm:ss",
yearly "MM-dd HH:mm:ss" or "cron:<expr>". Running schedulers pick up the
change on their next refresh.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeID, raw := args[0], args[1]
			rule, err := schedule.Parse(raw)
			if err != nil {
				return err
			}

			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			rec, err := store.GetJobByType(cmd.Context(), typeID)
			if err != nil {
				return err
			}
			if rec == nil {
				return errors.Wrapf(core.ErrJobNotFound, "jobs: %s", typeID)
			}
			if err := store.UpdateRecurrence(cmd.Context(), rec.ID, rule.String()); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("%s now runs on %q (was %q)", typeID, rule.String(), rec.Recurrence)
			return nil
		},
	})
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.DateTime)
}
