// Handles the "s3store ls" command
package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/spf13/cobra"
)

var lsDelimiter bool

var lsCmd = &cobra.Command{
	Use:   "ls [PREFIX]",
	Short: "List objects",
	Long: `List every object whose key starts with PREFIX. With --delimiter the
listing stops one "/" level below PREFIX and deeper keys are grouped into
common prefixes, shown as "PRE <prefix>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefix objstore.Path
		if len(args) == 1 {
			prefix = objstore.Path(args[0])
		}

		if lsDelimiter {
			res, err := storeManager.Store.ListWithDelimiter(cmd.Context(), prefix)
			if err != nil {
				return errors.Wrap(err, "List failed")
			}
			for _, p := range res.CommonPrefixes {
				fmt.Fprintf(cmd.OutOrStdout(), "PRE %s\n", p)
			}
			for _, meta := range res.Objects {
				printMeta(cmd, meta)
			}
			return nil
		}

		it := storeManager.Store.List(cmd.Context(), prefix)
		count := 0
		for {
			meta, err := it.Next()
			if err == objstore.Done {
				break
			}
			if err != nil {
				return errors.Wrap(err, "List failed")
			}
			printMeta(cmd, meta)
			count++
		}
		storeManager.Logger.Debugf("Listed %d objects", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().BoolVarP(&lsDelimiter, "delimiter", "d", false, "group keys by the next \"/\" below the prefix")
}
