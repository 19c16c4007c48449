package cli

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/orchestrator"
)

// CLIChannel is the channel recorded for commands typed at the terminal.
const CLIChannel = "CLI"

// SubmitOptions holds flags for the submit and parse commands.
type SubmitOptions struct {
	*RootOptions
	Household string
	User      string
	Channel   string
	Answers   map[string]string
}

func (o *SubmitOptions) request(args []string) orchestrator.SubmitRequest {
	return orchestrator.SubmitRequest{
		HouseholdID: o.Household,
		UserID:      o.User,
		Channel:     o.Channel,
		Text:        strings.Join(args, " "),
		Answers:     o.Answers,
	}
}

func (o *SubmitOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Household, "household", "", "household id (required)")
	cmd.Flags().StringVar(&o.User, "user", "", "user id (required)")
	cmd.Flags().StringVar(&o.Channel, "channel", CLIChannel, "channel recorded with the command")
	cmd.Flags().StringToStringVar(&o.Answers, "answer", nil, "clarification answer as question=value (repeatable)")
	_ = cmd.MarkFlagRequired("household")
	_ = cmd.MarkFlagRequired("user")
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <text>...",
		Short: "Submit a command and print the resulting card",
		Long: `Submit a free-text household command.

The command is parsed into an intent and, when it is supported and clear
enough, drafted against the configured vendor. Nothing is executed until
the draft is confirmed.

Examples:
  halo submit --household hh-1 --user u-1 "reorder the usual"
  halo submit --household hh-1 --user u-1 cancel my subscription --answer q0=Netflix
  halo submit --household hh-1 --user u-1 "book a cleaner" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args, cmd)
		},
	}
	opts.bind(cmd)

	return cmd
}

func runSubmit(opts *SubmitOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		c, err := a.orch.Submit(ctx, opts.request(args))
		if err != nil {
			return f.Reject(err)
		}
		f.VerboseLog("card %s for household %s", c.Type, c.HouseholdID)
		return emitCard(f, c)
	})
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <text>...",
		Short: "Show the intent of a command without drafting it",
		Long: `Parse a free-text command into an intent and print it.

Nothing is written to the database.

Example:
  halo parse --household hh-1 --user u-1 "cancel my netflix subscription"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}
	opts.bind(cmd)

	return cmd
}

func runParse(opts *SubmitOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		in, err := a.orch.Parse(ctx, opts.request(args))
		if err != nil {
			return f.Reject(err)
		}
		return f.Emit(in, func(w io.Writer) { writeIntent(w, in) })
	})
}

// ModifyOptions holds flags for the modify command.
type ModifyOptions struct {
	*RootOptions
	User string
	Set  string
}

// NewModifyCommand creates the modify command.
func NewModifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "modify <draft-id>",
		Short: "Modify a pending draft",
		Long: `Apply modifications to a draft that has not been executed.

--set takes a JSON object whose keys depend on the draft's verb:
  REORDER              items: [{"name": ..., "quantity": ...}]
  CANCEL_SUBSCRIPTION  subscription_name or subscription_id
  BOOK_APPOINTMENT     selected_time_window_index

Examples:
  halo modify 0190a3c4 --set '{"selected_time_window_index": 2}'
  halo modify 0190a3c4 --set '{"items": [{"name": "Paper Towels", "quantity": 3}]}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id of the modifier")
	cmd.Flags().StringVar(&opts.Set, "set", "{}", "modifications as a JSON object")

	return cmd
}

func runModify(opts *ModifyOptions, draftID string, cmd *cobra.Command) error {
	var mods domain.Blob
	if err := json.Unmarshal([]byte(opts.Set), &mods); err != nil {
		return WrapExitError(ExitCommandError, "invalid --set JSON", err)
	}

	f := opts.formatter(cmd)
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		c, err := a.orch.Modify(ctx, orchestrator.ModifyRequest{
			DraftID:       draftID,
			UserID:        opts.User,
			Modifications: mods,
		})
		if err != nil {
			return f.Reject(err)
		}
		return emitCard(f, c)
	})
}

// ConfirmOptions holds flags for the confirm command.
type ConfirmOptions struct {
	*RootOptions
	User string
}

// NewConfirmCommand creates the confirm command.
func NewConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfirmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "confirm <draft-id>",
		Short: "Confirm a draft and execute it",
		Long: `Confirm a draft. The draft is executed against its vendor and the
result is printed as a DONE or FAILED card.

A FAILED draft may be confirmed again; a DONE one may not.

Example:
  halo confirm 0190a3c4 --user u-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfirm(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id of the confirmer")

	return cmd
}

func runConfirm(opts *ConfirmOptions, draftID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app) error {
		c, err := a.orch.Confirm(ctx, orchestrator.ConfirmRequest{DraftID: draftID, UserID: opts.User})
		if err != nil {
			return f.Reject(err)
		}
		if err := emitCard(f, c); err != nil {
			return err
		}
		if c.Type == domain.CardFailed {
			return NewExitError(ExitFailure, "execution failed")
		}
		return nil
	})
}

func emitCard(f *OutputFormatter, c domain.Card) error {
	return f.Emit(c, func(w io.Writer) { writeCard(w, c) })
}
