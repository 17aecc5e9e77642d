/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	apimodel "github.com/blnkfinance/settlr/api/model"
	"github.com/blnkfinance/settlr/internal/apierror"
)

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
	fmt.Println(string(data))
}

// syncCommands defines the "sync" command. It runs a sync in the foreground, or enqueues one
// for the workers with --queue.
func syncCommands(s *settlrInstance) *cobra.Command {
	var req apimodel.SyncPayouts
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "sync payouts from the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.ValidateSyncPayouts(); err != nil {
				return err
			}
			ctx := context.Background()

			if enqueue {
				queue, err := initializeQueue(s.cnf)
				if err != nil {
					return err
				}
				if queue == nil {
					return fmt.Errorf("redis is not configured, run without --queue")
				}
				defer queue.Close()

				id, err := queue.EnqueueSync(ctx, req.ToFilter())
				if err != nil {
					return err
				}
				printJSON(map[string]string{"task_id": id})
				return nil
			}

			result, err := s.settlr.RunSync(ctx, req.ToFilter())
			if err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Status, "status", "", "payout status to sync (defaults to the configured status)")
	cmd.Flags().StringVar(&req.DateMin, "date-min", "", "earliest payout date, YYYY-MM-DD (defaults to the last sync)")
	cmd.Flags().BoolVar(&enqueue, "queue", false, "enqueue the sync for the workers")

	return cmd
}

// submitCommands defines the "submit" command for one payout.
func submitCommands(s *settlrInstance) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "submit [payout-id]",
		Short: "submit a synced payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			payoutID := args[0]

			if enqueue {
				queue, err := initializeQueue(s.cnf)
				if err != nil {
					return err
				}
				if queue == nil {
					return fmt.Errorf("redis is not configured, run without --queue")
				}
				defer queue.Close()

				id, err := queue.EnqueueSubmit(ctx, payoutID)
				if err != nil {
					return err
				}
				printJSON(map[string]string{"task_id": id})
				return nil
			}

			payout, err := s.settlr.RunSubmit(ctx, payoutID)
			if err != nil {
				return err
			}
			printJSON(payout)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enqueue, "queue", false, "enqueue the submission for the workers")

	return cmd
}

// payoutCommands defines the "payouts" command for reading stored payouts.
func payoutCommands(s *settlrInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "read synced payouts",
	}

	var limit, offset string
	list := &cobra.Command{
		Use:   "list",
		Short: "list payouts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apimodel.ParsePagination(limit, offset)
			if err != nil {
				return err
			}
			payouts, err := s.settlr.GetPayouts(context.Background(), page.Limit, page.Offset)
			if err != nil {
				return err
			}
			printJSON(payouts)
			return nil
		},
	}
	list.Flags().StringVar(&limit, "limit", "", "page size")
	list.Flags().StringVar(&offset, "offset", "", "page offset")

	get := &cobra.Command{
		Use:   "get [payout-id]",
		Short: "show a payout with its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payout, err := s.settlr.GetPayout(context.Background(), args[0])
			if err != nil {
				if apierror.IsCode(err, apierror.ErrNotFound) {
					return fmt.Errorf("payout %s has not been synced", args[0])
				}
				return err
			}
			printJSON(payout)
			return nil
		},
	}

	task := &cobra.Command{
		Use:   "task [payout-id]",
		Short: "show the queued submission of a payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := initializeQueue(s.cnf)
			if err != nil {
				return err
			}
			if queue == nil {
				return fmt.Errorf("redis is not configured")
			}
			defer queue.Close()

			info, err := queue.GetSubmitTask(args[0])
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Printf("no submission queued for payout %s\n", args[0])
				return nil
			}
			printJSON(map[string]interface{}{
				"task_id":    info.ID,
				"state":      info.State.String(),
				"retried":    info.Retried,
				"last_error": info.LastErr,
			})
			return nil
		},
	}

	cmd.AddCommand(list, get, task)
	return cmd
}
