package storemgr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/serverlessresearch/s3store/pkg/objstore"
	"github.com/sirupsen/logrus"
)

func Example() {
	mgrArgs := map[string]interface{}{}
	// ./s3store.yaml names the bucket and region for your environment
	mgrArgs["config-file"] = "./s3store.yaml"

	// Adding a custom logger is optional
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	mgrArgs["logger"] = logger

	mgr, err := NewManager(mgrArgs)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if _, err := mgr.Store.Put(ctx, "hello/world.txt", []byte("hello world"), objstore.PutOptions{}); err != nil {
		fmt.Printf("Put failed: %v\n", err)
		os.Exit(1)
	}

	// Large objects go through a multipart upload. Abort on any error so
	// no parts are left behind.
	_, w, err := mgr.Store.PutMultipart(ctx, "hello/large.txt")
	if err != nil {
		fmt.Printf("Failed to start upload: %v\n", err)
		os.Exit(1)
	}
	if _, err := w.Write([]byte(strings.Repeat("x", 32<<20))); err != nil {
		w.Abort()
		os.Exit(1)
	}
	if err := w.Close(); err != nil {
		w.Abort()
		os.Exit(1)
	}

	res, err := mgr.Store.Get(ctx, "hello/world.txt", objstore.GetOptions{Range: &objstore.Range{Start: 0, End: 5}})
	if err != nil {
		fmt.Printf("Get failed: %v\n", err)
		os.Exit(1)
	}
	data, err := res.Bytes()
	if err != nil {
		fmt.Printf("Read failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
