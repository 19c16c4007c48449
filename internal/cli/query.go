package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/karanuppal/halo/internal/orchestrator"
)

// NewDraftCommand creates the draft command.
func NewDraftCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft <draft-id>",
		Short: "Show the current card for a draft",
		Long: `Show a draft as a card. A draft that is executing or executed is
shown as a STATUS card.

Example:
  halo draft 0190a3c4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				c, err := a.orch.GetDraft(ctx, args[0])
				if err != nil {
					return f.Reject(err)
				}
				return emitCard(f, c)
			})
		},
	}
	return cmd
}

// ExecutionsOptions holds flags for the executions command.
type ExecutionsOptions struct {
	*RootOptions
	Household string
	Limit     int
}

// NewExecutionsCommand creates the executions command.
func NewExecutionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecutionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List a household's executions, newest first",
		Long: `List a household's executions, newest first.

Example:
  halo executions --household hh-1 --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
				list, err := a.orch.ListExecutions(ctx, opts.Household, opts.Limit)
				if err != nil {
					return f.Reject(err)
				}
				return f.Emit(list, func(w io.Writer) { writeExecutions(w, list) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Household, "household", "", "household id (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of executions")
	_ = cmd.MarkFlagRequired("household")

	return cmd
}

// NewExecutionCommand creates the execution command.
func NewExecutionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution <execution-id>",
		Short: "Show the audit detail of one execution",
		Long: `Show one execution with its command text, intent, draft, result and
receipts.

Example:
  halo execution 0190a3c5 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				d, err := a.orch.GetExecution(ctx, args[0])
				if err != nil {
					return f.Reject(err)
				}
				return f.Emit(d, func(w io.Writer) { writeExecution(w, d) })
			})
		},
	}
	return cmd
}

// NewReceiptsCommand creates the receipts command.
func NewReceiptsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "receipts <execution-id>",
		Short:         "List the receipts of an execution",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				receipts, err := a.orch.ListReceipts(ctx, args[0])
				if err != nil {
					return f.Reject(err)
				}
				return f.Emit(receipts, func(w io.Writer) { writeReceipts(w, receipts) })
			})
		},
	}
	return cmd
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Entity    string
	Execution string
	Household string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the event log",
		Long: `Show events in log order, selected by exactly one of --entity,
--execution or --household.

--execution also includes the draft and receipt events of that execution.

Examples:
  halo events --execution 0190a3c5
  halo events --household hh-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
				events, err := a.orch.Events(ctx, orchestrator.EventQuery{
					EntityID:    opts.Entity,
					ExecutionID: opts.Execution,
					HouseholdID: opts.Household,
				})
				if err != nil {
					return f.Reject(err)
				}
				return f.Emit(events, func(w io.Writer) { writeEvents(w, events) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "entity id")
	cmd.Flags().StringVar(&opts.Execution, "execution", "", "execution id")
	cmd.Flags().StringVar(&opts.Household, "household", "", "household id")
	cmd.MarkFlagsMutuallyExclusive("entity", "execution", "household")
	cmd.MarkFlagsOneRequired("entity", "execution", "household")

	return cmd
}
