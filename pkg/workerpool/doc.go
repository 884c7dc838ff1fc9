/*
Package workerpool implements a small bounded goroutine pool, grounded on
the ticker-driven background-loop idiom used throughout the fabric (a
fixed number of goroutines draining work until told to stop) rather than
an unbounded goroutine-per-job fan-out.

# See Also

  - pkg/ordering for the online learner, currently the pool's only user
*/
package workerpool
