package main

import "context"

func main() {
	if err := execute(context.Background(), newRootCmd()); err != nil {
		exitOnError(err)
	}
}
