// Package cli provides the interactive shopsync command-line client.
//
// It wires configuration, the local database, the sync client and the
// scheduler, then runs a REPL over stdin. Records are edited locally and
// synced in the background whenever the server is reachable.
//
// Commands:
//   - register, login, logout
//   - add | edit | delete | list <kind>, where kind is transaction,
//     product or service
//   - sync, status
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
