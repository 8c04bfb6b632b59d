// Handles the "s3store upload" and "s3store abort" commands
package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload LOCATION FILE",
	Short: "Upload a file through a multipart upload",
	Long: `Upload streams FILE to LOCATION in parts of the configured
multipart.part-size, several parts at a time. If anything goes wrong the
upload is aborted so no parts are left behind.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return errors.Wrap(err, "Failed to open "+args[1])
		}
		defer f.Close()

		location := objstore.Path(args[0])
		id, w, err := storeManager.Store.PutMultipart(cmd.Context(), location)
		if err != nil {
			return errors.Wrap(err, "Failed to start upload")
		}
		log := storeManager.Logger.WithField("upload_id", id)

		n, err := io.Copy(w, bufio.NewReader(f))
		if err == nil {
			err = w.Close()
		}
		if err != nil {
			if abortErr := w.Abort(); abortErr != nil {
				log.WithError(abortErr).Warn("Failed to abort upload")
			}
			return errors.Wrap(err, "Upload failed")
		}

		log.WithFields(logrus.Fields{"bytes": n, "parts": w.Parts()}).Info("Successfully uploaded " + args[0])
		return nil
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort LOCATION UPLOAD_ID",
	Short: "Abort a multipart upload and discard its parts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := storeManager.Store.AbortMultipart(cmd.Context(), objstore.Path(args[0]), objstore.MultipartID(args[1]))
		if err != nil {
			return errors.Wrap(err, "Abort failed")
		}
		storeManager.Logger.Info("Successfully aborted upload " + args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(abortCmd)
}
