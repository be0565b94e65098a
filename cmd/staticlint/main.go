/*
Staticlint is the shortener's multichecker.

Usage:

	go run ./cmd/staticlint ./...

It runs the go/analysis passes that apply to ordinary packages, every SA
analyzer of staticcheck, QF1001, ST1005 and ST1012, and three checks that
guard conventions of this repository:

  - osexit: no direct os.Exit in func main; the server leaves through
    zap's Fatal so deferred cleanup elsewhere stays reachable.
  - clickwrite: URLRecord.Clicks is only written by the storage and
    repository packages, where the increment is atomic. Everywhere else
    must call IncrementClicks.
  - errwrap: fmt.Errorf that receives an error must wrap it with %w, since
    HTTP and gRPC status mapping uses errors.Is on storage and service sentinels.
*/
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"
)

func main() {
	multichecker.Main(analyzers()...)
}
