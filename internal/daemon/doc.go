// Package daemon coordinates the long-running Strive rating process.
//
// It owns the single-instance flock, the HTTP API server and the lifecycle of
// the rating service handed to it by daemonrun. Rating logic lives in the
// ratings package; the daemon only translates HTTP requests into service
// calls and reports health and diagnostics.
package daemon
