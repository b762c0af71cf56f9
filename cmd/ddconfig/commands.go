package main

import (
	"fmt"

	"github.com/jrife/rangeconf/ddconfig"
	"github.com/jrife/rangeconf/rangemap"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/utils/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetCmd(a *app) *cobra.Command {
	var replication int
	var force bool

	cmd := &cobra.Command{
		Use:   "set BEGIN [END]",
		Short: "override the configuration of [BEGIN, END). Without END the override runs to the end of the keyspace",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, end, err := a.keys(args)

			if err != nil {
				return err
			}

			delta := ddconfig.RangeConfig{ForceBoundary: force}

			if cmd.Flags().Changed("replication") {
				delta.ReplicationFactor = ddconfig.Some(replication)
			}

			ctx := a.context(cmd)
			log.WithContext(ctx, a.logger).Info("updating range", zap.String("begin", a.format(begin)), zap.String("end", a.format(end)), zap.Object("delta", delta))

			return kv.Update(ctx, a.store, func(txn kv.Transaction) error {
				return rangemap.UpdateRange(txn, a.configuration.UserRangeConfig(), begin, end, delta)
			})
		},
	}

	cmd.Flags().IntVarP(&replication, "replication", "r", 0, "replication factor of the range")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "force boundaries at BEGIN and END")

	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "print the configuration in effect at KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.key(args[0])

			if err != nil {
				return err
			}

			return kv.View(a.context(cmd), a.store, func(txn kv.Transaction) error {
				entry, ok, err := a.configuration.UserRangeConfig().RangeFor(txn, key)

				if err != nil {
					return err
				}

				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", ddconfig.RangeConfig{})

					return nil
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s (from boundary %s)\n", entry.Value, a.format(entry.Boundary))

				return nil
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [BEGIN [END]]",
		Short: "print the configured spans between BEGIN and END",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, end, err := a.keys(args)

			if err != nil {
				return err
			}

			return kv.View(a.context(cmd), a.store, func(txn kv.Transaction) error {
				spans, err := ddconfig.Spans(txn, a.configuration.UserRangeConfig(), begin, end)

				if err != nil {
					return err
				}

				for _, span := range spans {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s, %s) %s\n", a.format(span.Begin), a.format(span.End), span.Config)
				}

				return nil
			})
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear BEGIN [END]",
		Short: "remove every boundary in [BEGIN, END)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, end, err := a.keys(args)

			if err != nil {
				return err
			}

			return kv.Update(a.context(cmd), a.store, func(txn kv.Transaction) error {
				return a.configuration.UserRangeConfig().ClearRange(txn, begin, end)
			})
		},
	}
}

func newSplitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "split KEY",
		Short: "add a boundary at KEY that keeps the configuration in effect there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.key(args[0])

			if err != nil {
				return err
			}

			var split bool

			err = kv.Update(a.context(cmd), a.store, func(txn kv.Transaction) error {
				split, err = rangemap.SplitAt(txn, a.configuration.UserRangeConfig(), key)

				return err
			})

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "split: %t\n", split)

			return nil
		},
	}
}

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge KEY",
		Short: "remove the boundary at KEY if the range before it can absorb it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.key(args[0])

			if err != nil {
				return err
			}

			var merged bool

			err = kv.Update(a.context(cmd), a.store, func(txn kv.Transaction) error {
				merged, err = rangemap.MergeAt(txn, a.configuration.UserRangeConfig(), key)

				return err
			})

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "merged: %t\n", merged)

			return nil
		},
	}
}

func newCoalesceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "coalesce [BEGIN [END]]",
		Short: "remove every redundant boundary in [BEGIN, END]",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, end, err := a.keys(args)

			if err != nil {
				return err
			}

			var removed int

			err = kv.Update(a.context(cmd), a.store, func(txn kv.Transaction) error {
				removed, err = rangemap.Coalesce(txn, a.configuration.UserRangeConfig(), begin, end)

				return err
			})

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d boundaries\n", removed)

			return nil
		},
	}
}
