// Handles the "s3store get" command
package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Filled in by cobra argument parsing in init()
var getCmdConfig struct {
	byteRange         string
	ifMatch           string
	ifNoneMatch       string
	ifModifiedSince   string
	ifUnmodifiedSince string
	output            string
}

var getCmd = &cobra.Command{
	Use:   "get LOCATION",
	Short: "Read an object",
	Long: `Read an object, or a byte range of it, and write its content to
stdout or to the file given with --output. Conditions are evaluated by the
service; a failed condition is reported as an error.

Every read needs a Content-Range in the response to learn the object size.
S3 only sends one for ranged reads, so against S3 pass --range; a read
without it fails with a missing content-range error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := getOptions()
		if err != nil {
			return err
		}

		res, err := storeManager.Store.Get(cmd.Context(), objstore.Path(args[0]), opts)
		if err != nil {
			return errors.Wrap(err, "Get failed")
		}
		defer res.Payload.Close()

		var out io.Writer = cmd.OutOrStdout()
		if getCmdConfig.output != "" {
			f, err := os.Create(getCmdConfig.output)
			if err != nil {
				return errors.Wrap(err, "Failed to create "+getCmdConfig.output)
			}
			defer f.Close()
			out = f
		}
		n, err := io.Copy(out, res.Payload)
		if err != nil {
			return errors.Wrap(err, "Failed to read object content")
		}

		storeManager.Logger.WithFields(logrus.Fields{
			"range": res.Range.String(),
			"size":  res.Meta.Size,
			"etag":  res.Meta.ETag,
			"bytes": n,
		}).Info("Read " + res.Meta.Location.String())
		return nil
	},
}

func getOptions() (objstore.GetOptions, error) {
	var opts objstore.GetOptions
	var err error

	if opts.Range, err = parseRange(getCmdConfig.byteRange); err != nil {
		return opts, err
	}
	if opts.IfModifiedSince, err = parseTime(getCmdConfig.ifModifiedSince); err != nil {
		return opts, err
	}
	if opts.IfUnmodifiedSince, err = parseTime(getCmdConfig.ifUnmodifiedSince); err != nil {
		return opts, err
	}
	opts.IfMatch = getCmdConfig.ifMatch
	opts.IfNoneMatch = getCmdConfig.ifNoneMatch
	return opts, nil
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVarP(&getCmdConfig.byteRange, "range", "r", "", "half-open byte range START:END")
	getCmd.Flags().StringVar(&getCmdConfig.ifMatch, "if-match", "", "only read if the entity tag matches")
	getCmd.Flags().StringVar(&getCmdConfig.ifNoneMatch, "if-none-match", "", "only read if the entity tag differs")
	getCmd.Flags().StringVar(&getCmdConfig.ifModifiedSince, "if-modified-since", "", "only read if modified after this RFC 3339 time")
	getCmd.Flags().StringVar(&getCmdConfig.ifUnmodifiedSince, "if-unmodified-since", "", "only read if not modified after this RFC 3339 time")
	getCmd.Flags().StringVarP(&getCmdConfig.output, "output", "o", "", "write content to this file instead of stdout")
}
