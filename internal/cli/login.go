package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

var (
	loginUserID     string
	loginEmail      string
	loginCredential string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the identity the sync channel authenticates with",
	Long: `Store the user identity locally. The sync channel presents it when
authenticating; obtaining the credential itself happens outside this tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IdentityStore == nil {
			return fmt.Errorf("identity store not initialized")
		}

		identity := models.Identity{
			UserID:     loginUserID,
			Email:      loginEmail,
			Credential: loginCredential,
		}
		if err := IdentityStore.Save(identity); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s.\n", identity.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored identity and the cached snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IdentityStore == nil {
			return fmt.Errorf("identity store not initialized")
		}

		if err := IdentityStore.Clear(); err != nil {
			return err
		}
		// Cached tasks belong to the identity that fetched them.
		if Cache != nil {
			Cache.Clear()
		}

		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUserID, "user-id", "", "server-assigned user id")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginCredential, "credential", "", "authentication credential")
	_ = loginCmd.MarkFlagRequired("user-id")
	_ = loginCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
