// Handles the "s3store put" command
package cmd

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/spf13/cobra"
)

var putTags string

var putCmd = &cobra.Command{
	Use:   "put LOCATION FILE",
	Short: "Upload a file as one object in a single request",
	Long: `Put reads FILE into memory and writes it to LOCATION in one request.
Use "s3store upload" for files too large to hold in memory.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := parseTags(putTags)
		if err != nil {
			return err
		}
		data, err := ioutil.ReadFile(args[1])
		if err != nil {
			return errors.Wrap(err, "Failed to read "+args[1])
		}

		res, err := storeManager.Store.Put(cmd.Context(), objstore.Path(args[0]), data, objstore.PutOptions{Tags: tags})
		if err != nil {
			return errors.Wrap(err, "Put failed")
		}
		storeManager.Logger.WithField("etag", res.ETag).Info("Successfully stored " + args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)

	putCmd.Flags().StringVarP(&putTags, "tags", "t", "", "object tags: key1=value1,key2=value2")
}
