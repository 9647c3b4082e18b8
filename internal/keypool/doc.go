// Package keypool manages the rotating pool of rating provider credentials.
//
// Credentials are discovered once from an explicit list, then handed out in
// round-robin order. Each credential carries a daily quota; reaching it rests
// the credential until ResetDaily, while an authorization failure removes it
// from rotation until the next UTC midnight. A Pool is safe for concurrent use.
package keypool
