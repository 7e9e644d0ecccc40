package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"blockhost-portal/internal/drafts"
	"blockhost-portal/internal/forms"
	"blockhost-portal/internal/submission"
)

type stderrNotifier struct{ w io.Writer }

func (n stderrNotifier) NotifyError(message string) {
	fmt.Fprintf(n.w, "\n! %s\n", message)
}

func newApplyCmd() *cobra.Command {
	var formFlag string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Fill in and submit a creator application",
		Long: `Walk through the application form field by field. Answers are saved as a
local draft while you type, so an interrupted session resumes where it left
off. Press enter to keep the value shown in brackets, or "-" to clear it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := forms.ParseFormType(formFlag)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runApply(ctx, form, newPrompter(os.Stdin, cmd.OutOrStdout()), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&formFlag, "form", string(forms.Standard), "Application form: standard or founding")
	return cmd
}

func runApply(ctx context.Context, form forms.FormType, p *prompter, out io.Writer) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !sess.consent.State().HasDecided {
		if err := askConsent(p, sess); err != nil {
			return err
		}
	}
	sess.gate.TrackPageView(ctx, "/apply/"+string(form))

	state := newFormState(forms.Defaults(form))
	draft := drafts.New(drafts.Options{
		Values:   state.Snapshot,
		Reset:    state.Reset,
		Key:      form.DraftKey(),
		Defaults: forms.Defaults(form),
		Storage:  sess.store,
		Logger:   sess.log,
	})
	draft.Start()
	// Deferred calls run in reverse: the pending write lands before Stop.
	defer draft.Stop()
	defer draft.Flush()

	fmt.Fprintf(out, "%s\n\n", form.Title())
	if at := draft.SavedAt(); at != nil {
		fmt.Fprintf(out, "Resuming your draft from %s.\n\n", at.Local().Format("Jan 2 15:04"))
	}

	pipeline := submission.New(submission.Config{
		Form:      form,
		Values:    state.Snapshot,
		Transport: newPortalClient(),
		Drafts:    draft,
		Tracker:   sess.gate,
		Notifier:  stderrNotifier{w: os.Stderr},
		Logger:    sess.log,
	})

	pending := forms.Fields(form)
	for {
		if err := askFields(ctx, p, pending, state, draft); err != nil {
			return err
		}

		err := pipeline.Submit(ctx)
		var invalid *submission.ValidationError
		switch {
		case err == nil:
			fmt.Fprintln(out, "\nApplication submitted. Check your inbox for a confirmation email.")
			return nil
		case stderrors.As(err, &invalid):
			pending = failedFields(form, invalid.Fields, out)
		default:
			retry, perr := p.confirm("Try sending again?", true)
			if perr != nil {
				return perr
			}
			if !retry {
				fmt.Fprintln(out, "Your answers are saved as a draft.")
				return err
			}
			pending = nil
		}
	}
}

func askFields(ctx context.Context, p *prompter, fields []forms.Field, state *formState, draft *drafts.Store) error {
	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := p.field(f, state.Get(f.Name))
		if err != nil {
			return err
		}
		state.Set(f.Name, v)
		draft.OnChange()
	}
	return nil
}

// failedFields prints each error and returns the fields to ask again, in form order.
func failedFields(form forms.FormType, fieldErrors map[string]string, out io.Writer) []forms.Field {
	fmt.Fprintln(out, "\nA few answers need another look:")
	names := make([]string, 0, len(fieldErrors))
	for name := range fieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []forms.Field
	for _, f := range forms.Fields(form) {
		if msg, ok := fieldErrors[f.Name]; ok {
			fmt.Fprintf(out, "  - %s: %s\n", f.Label, msg)
			fields = append(fields, f)
		}
	}
	for _, name := range names {
		if _, known := forms.Lookup(form, name); !known {
			fmt.Fprintf(out, "  - %s: %s\n", name, fieldErrors[name])
		}
	}
	fmt.Fprintln(out)
	return fields
}
