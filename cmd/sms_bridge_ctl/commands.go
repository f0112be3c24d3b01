package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

type runWithEnv func(run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error

type bindingView struct {
	ConversationID string    `json:"conversation_id"`
	Number         string    `json:"number"`
	ExpiresAt      time.Time `json:"expires_at"`
	Expired        bool      `json:"expired"`
}

func newBindingsCmd(withEnv runWithEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "bindings <user-id>",
		Short: "Show which pool number each of a user's conversations is bound to",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			m, err := e.store.LoadChannelMap(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrChannelMapNotFound) {
				m = domain.NewUserChannelMap()
			} else if err != nil {
				return err
			}

			now := time.Now()
			views := make([]bindingView, 0, m.Len())
			for conversationID, b := range m.Entries {
				views = append(views, bindingView{
					ConversationID: conversationID,
					Number:         b.Number,
					ExpiresAt:      b.ExpiresAt.UTC(),
					Expired:        b.Expired(now),
				})
			}
			sort.Slice(views, func(i, j int) bool { return views[i].ConversationID < views[j].ConversationID })
			return printJSON(cmd, views)
		}),
	}
}

func newWhoisCmd(withEnv runWithEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "whois <phone>",
		Short: "Show the user SMS from a phone number are routed for",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			userID, ok, err := e.store.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no user recorded for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), userID)
			return nil
		}),
	}
}

func newHookCmd(withEnv runWithEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Print the receipt webhook definition registered at startup",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			hook := domain.NewReceiptHookConfig(e.cfg.IntegrationName, e.cfg.LayerPath, e.cfg.ReceiptDelay, e.cfg.RecipientStatusFilter)
			if err := hook.Validate(); err != nil {
				return err
			}
			return printJSON(cmd, hook)
		}),
	}
}

func newReconcileCmd(withEnv runWithEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Point the inbound callback of every pool number at this bridge",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			updated, err := e.reconciler.Reconcile(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d number(s)\n", updated)
			return err
		}),
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
