package cmd

import (
	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/spf13/cobra"
)

var cpNoClobber bool

// cpCmd copies inside the bucket without moving data through the client.
var cpCmd = &cobra.Command{
	Use:   "cp FROM TO",
	Short: "Copy an object within the bucket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := objstore.Path(args[0]), objstore.Path(args[1])

		var err error
		if cpNoClobber {
			err = storeManager.Store.CopyIfNotExists(cmd.Context(), from, to)
		} else {
			err = storeManager.Store.Copy(cmd.Context(), from, to)
		}
		if err != nil {
			return errors.Wrap(err, "Copy failed")
		}
		storeManager.Logger.Info("Successfully copied " + args[0] + " to " + args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cpCmd)

	cpCmd.Flags().BoolVarP(&cpNoClobber, "no-clobber", "n", false, "fail instead of replacing an existing target")
}
