package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/provider"
)

var credentialValidate bool

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage per-user provider credentials",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set [user-id] [provider] [key]",
	Short: "Store an API key for a user and provider",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, providerName, key := args[0], args[1], args[2]

		registry := provider.NewRegistryFromConfig(cfg)
		var adapter provider.Adapter
		for _, a := range registry.Adapters() {
			if a.Name() == providerName {
				adapter = a
				break
			}
		}
		if adapter == nil {
			return eris.Errorf("unknown provider %q", providerName)
		}

		if credentialValidate && !adapter.ValidateCredential(cmd.Context(), key) {
			return eris.Errorf("credential for %s failed validation", providerName)
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		if err := st.SetCredential(cmd.Context(), userID, providerName, key); err != nil {
			return err
		}
		zap.L().Info("credential stored",
			zap.String("user_id", userID),
			zap.String("provider", providerName))
		return nil
	},
}

func init() {
	credentialSetCmd.Flags().BoolVar(&credentialValidate, "validate", false, "verify the key with a minimal API call before storing")
	credentialCmd.AddCommand(credentialSetCmd)
	rootCmd.AddCommand(credentialCmd)
}
