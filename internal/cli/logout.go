package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the session and remove local credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.Logout(ctx); err != nil {
			return err
		}
		if err := a.store.ClearSession(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}
