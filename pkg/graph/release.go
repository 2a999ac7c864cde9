//go:build !debug

package graph

// Debug makes rooms validate the whole graph after every applied event and
// panic on a violation.
const Debug = false
