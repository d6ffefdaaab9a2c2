// Package logs reads the daemon log for `screensolve logs`.
//
// Negative offsets return the last N lines; follow mode polls for appended
// lines until the caller's wait elapses. A Match filter keeps only lines that
// contain the given text, which is how the CLI narrows output to one run id.
package logs
