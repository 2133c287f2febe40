// Package benchmark compares the leader/followers pool and its queue with
// the plain channel-based designs they replace.
package benchmark
