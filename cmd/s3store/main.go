package main

import "github.com/serverlessresearch/s3store/cmd"

func main() {
	cmd.Execute()
}
