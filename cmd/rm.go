package cmd

import (
	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm LOCATION",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := storeManager.Store.Delete(cmd.Context(), objstore.Path(args[0])); err != nil {
			return errors.Wrap(err, "Delete failed")
		}
		storeManager.Logger.Info("Successfully deleted " + args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
