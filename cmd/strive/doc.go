// Command strive is the command-line front end for the Strive rating service.
//
// `strive serve` runs the rating daemon in the foreground. The other commands
// talk to that daemon over its HTTP API: `rating` and `batch` look titles up,
// `keys` shows and resets rating credentials, and `diagnostics` prints
// request metrics with tuning advice. `rating --local` and `batch --local`
// build the rating stack in-process instead, which is handy for one-off
// lookups without a daemon.
//
// `idmap` inspects and edits the persisted catalog to IMDb id mapping file,
// and `config` writes a sample configuration or prints the effective one.
package main
