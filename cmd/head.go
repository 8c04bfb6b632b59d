package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/spf13/cobra"
)

var headCmd = &cobra.Command{
	Use:   "head LOCATION",
	Short: "Show the metadata of an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := storeManager.Store.Head(cmd.Context(), objstore.Path(args[0]))
		if err != nil {
			return errors.Wrap(err, "Head failed")
		}
		printMeta(cmd, meta)
		return nil
	},
}

func printMeta(cmd *cobra.Command, meta objstore.ObjectMeta) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %10d %s %s\n",
		meta.LastModified.Format(time.RFC3339Nano), meta.Size, meta.ETag, meta.Location)
}

func init() {
	rootCmd.AddCommand(headCmd)
}
