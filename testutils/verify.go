package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the tests of a package and fails the run if goroutines are still running once
// they are done.
func VerifyTestMain(m goleak.TestingM, opts ...goleak.Option) {
	goleak.VerifyTestMain(m, opts...)
}
