// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/serverlessresearch/s3store/pkg/storemgr"
	"github.com/spf13/cobra"
)

var cfgFile string

var showMetrics bool

var storeManager *storemgr.StoreManager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "s3store",
	Short: "Work with objects in an S3 bucket",
	Long: `A command line front end for the S3 object store adapter. Every
command maps onto one store operation against the configured bucket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mgrArgs := map[string]interface{}{}
		if cfgFile != "" {
			mgrArgs["config-file"] = cfgFile
		}

		var err error
		storeManager, err = storemgr.NewManager(mgrArgs)
		if err != nil {
			return errors.Wrap(err, "Failed to initialize store manager")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if showMetrics {
			return storeManager.WriteMetrics(cmd.ErrOrStderr())
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if storeManager == nil || storeManager.Logger == nil {
			fmt.Printf("%v\n", err)
		} else {
			storeManager.Logger.Error(err)
		}
		stop()
		os.Exit(1)
	}
}

// parseTags reads "k1=v1,k2=v2" keeping the given order.
func parseTags(s string) (objstore.TagSet, error) {
	var tags objstore.TagSet
	if s == "" {
		return tags, nil
	}
	for _, pair := range strings.Split(s, ",") {
		keyValue := strings.SplitN(pair, "=", 2)
		if len(keyValue) != 2 || keyValue[0] == "" {
			return tags, errors.Errorf("malformed tag %q, expected key=value", pair)
		}
		tags.Push(keyValue[0], keyValue[1])
	}
	return tags, nil
}

// parseRange reads "START:END", a half-open byte range.
func parseRange(s string) (*objstore.Range, error) {
	if s == "" {
		return nil, nil
	}
	bounds := strings.SplitN(s, ":", 2)
	if len(bounds) != 2 {
		return nil, errors.Errorf("malformed range %q, expected START:END", s)
	}
	start, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid range start")
	}
	end, err := strconv.ParseInt(bounds[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid range end")
	}
	r := &objstore.Range{Start: start, End: end}
	if !r.Valid() {
		return nil, errors.Errorf("empty or negative range %s", r)
	}
	return r, nil
}

// parseTime reads an RFC 3339 timestamp; empty means unset.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Invalid timestamp")
	}
	return t, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/s3store.yaml or ~/.s3store/s3store.yaml)")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print operation metrics to stderr when done")
}
