package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blockhost-portal/internal/consent"
	"blockhost-portal/internal/forms"
	"blockhost-portal/internal/storage"
)

func askConsent(p *prompter, sess *session) error {
	allow, err := p.confirm("Allow anonymous usage analytics?", false)
	if err != nil {
		return err
	}
	if allow {
		sess.consent.AcceptAll()
	} else {
		sess.consent.AcceptNecessaryOnly()
	}
	return nil
}

func newConsentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Show or change your analytics consent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(sess *session) error {
				printConsent(cmd.OutOrStdout(), sess.consent.State())
				return nil
			})
		},
	}

	actions := []struct {
		use, short string
		apply      func(*consent.Store)
	}{
		{"accept-all", "Allow analytics and marketing", (*consent.Store).AcceptAll},
		{"necessary-only", "Allow only what the portal needs to work", (*consent.Store).AcceptNecessaryOnly},
		{"reset", "Forget your decision; you will be asked again", (*consent.Store).Reset},
	}
	for _, a := range actions {
		a := a
		cmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd.Context(), func(sess *session) error {
					a.apply(sess.consent)
					printConsent(cmd.OutOrStdout(), sess.consent.State())
					return nil
				})
			},
		})
	}
	return cmd
}

func printConsent(out io.Writer, st consent.State) {
	if !st.HasDecided {
		fmt.Fprintln(out, "No decision recorded.")
		return
	}
	fmt.Fprintf(out, "necessary: %t\nanalytics: %t\nmarketing: %t\ndecided:   %s\n",
		st.Consent.Necessary, st.Consent.Analytics, st.Consent.Marketing, st.DecidedAt.Local().Format("2006-01-02 15:04"))
}

func newDraftCmd() *cobra.Command {
	var formFlag string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect or discard a saved application draft",
	}
	cmd.PersistentFlags().StringVar(&formFlag, "form", string(forms.Standard), "Application form: standard or founding")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved draft as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := forms.ParseFormType(formFlag)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(sess *session) error {
				raw, ok, err := sess.store.GetItem(form.DraftKey())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No saved draft.")
					return nil
				}
				var values map[string]interface{}
				if err := json.Unmarshal([]byte(raw), &values); err != nil {
					return fmt.Errorf("saved draft is unreadable: %w", err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := forms.ParseFormType(formFlag)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(sess *session) error {
				if err := removeDraft(sess.store, form); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Draft cleared.")
				return nil
			})
		},
	})
	return cmd
}

func removeDraft(st storage.Storage, form forms.FormType) error {
	if err := st.RemoveItem(form.DraftKey()); err != nil {
		return err
	}
	return st.RemoveItem(form.DraftKey() + "_timestamp")
}

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Read your game servers through the dashboard API",
	}
	cmd.PersistentFlags().String("token", "", "Dashboard bearer token (or BLOCKHOST_TOKEN)")

	token := func() (string, error) {
		t := settings.GetString("token")
		if t == "" {
			return "", fmt.Errorf("a dashboard token is required: pass --token or set BLOCKHOST_TOKEN")
		}
		return t, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List servers linked to your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token()
			if err != nil {
				return err
			}
			servers, err := newPortalClient().ListServers(cmd.Context(), tok)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IDENTIFIER\tNAME\tMEMORY\tDISK\tCPU\tSUSPENDED")
			for _, s := range servers {
				a := s.Attributes
				fmt.Fprintf(tw, "%s\t%s\t%d MB\t%d MB\t%d%%\t%t\n", a.Identifier, a.Name, a.Limits.Memory, a.Limits.Disk, a.Limits.CPU, a.Suspended)
			}
			return tw.Flush()
		},
	})

	single := func(use, short string, fetch func(ctx context.Context, token, id string) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " SERVER_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tok, err := token()
				if err != nil {
					return err
				}
				v, err := fetch(cmd.Context(), tok, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			},
		}
	}

	cmd.AddCommand(single("details", "Show one server", func(ctx context.Context, tok, id string) (interface{}, error) {
		return newPortalClient().ServerDetails(ctx, tok, id)
	}))
	cmd.AddCommand(single("resources", "Show live resource usage", func(ctx context.Context, tok, id string) (interface{}, error) {
		return newPortalClient().ServerResources(ctx, tok, id)
	}))
	cmd.AddCommand(single("backups", "List backups", func(ctx context.Context, tok, id string) (interface{}, error) {
		return newPortalClient().ServerBackups(ctx, tok, id)
	}))
	return cmd
}

func withSession(ctx context.Context, fn func(*session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}
