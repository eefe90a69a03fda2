// Command rawr-remote serves a remote entity repository over gRPC and
// fetches entities from the command line.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
