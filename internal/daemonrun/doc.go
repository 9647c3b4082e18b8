// Package daemonrun wires configuration into a running rating daemon: it
// builds the catalog, credential, rating and cache components, then serves
// them through internal/daemon until the process is signalled.
package daemonrun
