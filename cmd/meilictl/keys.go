package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/pkg/meili"
)

func (a *app) newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.client.GetKeys(cmd.Context())
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []meili.Key{}
			}
			return a.print(cmd, keys)
		},
	}

	get := &cobra.Command{
		Use:   "get <key-or-uid>",
		Short: "Show one API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.client.GetKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, key)
		},
	}

	var (
		create    meili.KeyCreate
		uid       string
		expiresIn time.Duration
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if uid != "" {
				parsed, err := uuid.Parse(uid)
				if err != nil {
					return fmt.Errorf("invalid key uid: %w", err)
				}
				create.UID = &parsed
			}
			if expiresIn > 0 {
				expiresAt := time.Now().UTC().Add(expiresIn).Truncate(time.Second)
				create.ExpiresAt = &expiresAt
			}

			key, err := a.client.CreateKey(cmd.Context(), create)
			if err != nil {
				return err
			}
			a.logger.Info().Str("uid", key.UID.String()).Msg("API key created")
			return a.print(cmd, key)
		},
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "key name")
	createCmd.Flags().StringVar(&create.Description, "description", "", "key description")
	createCmd.Flags().StringSliceVar(&create.Actions, "actions", []string{"search"}, "allowed actions")
	createCmd.Flags().StringSliceVar(&create.Indexes, "indexes", []string{"*"}, "allowed indexes")
	createCmd.Flags().StringVar(&uid, "uid", "", "explicit key uid")
	createCmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime of the key (no expiry when zero)")

	var update meili.KeyUpdate
	updateCmd := &cobra.Command{
		Use:   "update <key-or-uid>",
		Short: "Update the name and description of an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update.Key = args[0]
			key, err := a.client.UpdateKey(cmd.Context(), update)
			if err != nil {
				return err
			}
			return a.print(cmd, key)
		},
	}
	updateCmd.Flags().StringVar(&update.Name, "name", "", "new key name")
	updateCmd.Flags().StringVar(&update.Description, "description", "", "new key description")

	del := &cobra.Command{
		Use:   "delete <key-or-uid>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, map[string]any{"key": args[0], "deleted": true})
		},
	}

	cmd.AddCommand(list, get, createCmd, updateCmd, del)
	return cmd
}

func (a *app) newTokenCmd() *cobra.Command {
	var (
		keyRef    string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <search-rules>",
		Short: "Generate a tenant token",
		Long: `Generate a tenant token signed with an API key.

The search rules are JSON: either a list of index names such as '["movies"]'
or an object mapping index names to rules such as '{"movies": {"filter": "genre = Drama"}}'.
Without --key the default search key is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules any
			if err := parseJSONArg("search rules", args[0], &rules); err != nil {
				return err
			}

			var opts meili.TenantTokenOptions
			if keyRef != "" {
				key, err := a.client.GetKey(cmd.Context(), keyRef)
				if err != nil {
					return err
				}
				opts.Key = key
			}
			if expiresIn > 0 {
				opts.ExpiresAt = time.Now().UTC().Add(expiresIn)
			}

			token, err := a.client.GenerateTenantToken(cmd.Context(), rules, opts)
			if err != nil {
				return err
			}
			return a.print(cmd, map[string]string{"token": token})
		},
	}
	cmd.Flags().StringVar(&keyRef, "key", "", "key value or uid used to sign the token")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime of the token (no expiry when zero)")
	return cmd
}
