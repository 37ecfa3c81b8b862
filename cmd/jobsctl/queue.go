package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/queue"
)

func (a *app) queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage work items of queue-driven jobs",
	}

	var group string
	enqueue := &cobra.Command{
		Use:   "enqueue <type-id> [tokens...]",
		Short: "Add a work item for a queue-driven job",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, tokens []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			id, err := queue.New(store).Enqueue(cmd.Context(), tokens[0], args.FromSlice(tokens[1:]), queue.Group(group))
			if err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Enqueued %s", id)
			return nil
		},
	}
	enqueue.Flags().StringVar(&group, "group", "", "Extension group (default: the job's)")
	cmd.AddCommand(enqueue)

	var (
		listGroup  string
		listStatus string
		listLimit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List work items by group and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, ok := core.ParseQueueStatus(strings.ToLower(listStatus))
			if !ok {
				return errors.WithHint(
					errors.Wrapf(core.ErrInvalidQueueStatus, "status %q", listStatus),
					"use normal, failed, disabled or completed")
			}

			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			items, err := queue.New(store).List(cmd.Context(), listGroup, status, listLimit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("No %s items", status)
				return nil
			}

			data := pterm.TableData{{"ID", "GROUP", "TRIES", "CREATED", "LAST ERROR", "PAYLOAD"}}
			for _, it := range items {
				lastErr := ""
				if it.LastError != nil {
					lastErr = *it.LastError
				}
				data = append(data, []string{
					it.ID,
					it.ExtensionGroup,
					strconv.Itoa(it.TryCount),
					it.CreatedAt.Format(time.DateTime),
					lastErr,
					it.Args().String(),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(cmd.OutOrStdout()).Render()
		},
	}
	list.Flags().StringVar(&listGroup, "group", "", "Only items in this extension group")
	list.Flags().StringVar(&listStatus, "status", core.QueueNormal.String(), "normal, failed, disabled or completed")
	list.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of items")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <item-id>",
		Short: "Return an item to normal with a fresh set of attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := queue.New(store).Retry(cmd.Context(), ids[0]); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Item %s will be retried", ids[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable <item-id>",
		Short: "Park an item so it is no longer processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, ids []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := queue.New(store).Disable(cmd.Context(), ids[0]); err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Item %s disabled", ids[0])
			return nil
		},
	})
	return cmd
}
