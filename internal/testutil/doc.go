// Package testutil provides shared helpers for tests: stub agents with
// scriptable behavior and model doubles for failure and timeout scenarios.
package testutil
