package main

import "os"

func main() {
	defer cleanup()
	go func() {
		os.Exit(3)
	}()
	os.Exit(1) // want "os.Exit in main skips deferred cleanup"
}

func cleanup() {}

func fail() {
	os.Exit(2)
}
