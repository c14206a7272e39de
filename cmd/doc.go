// Package cmd implements the command-line interface of dCheck. It provides
// the check-out/check-in commands for users, administrative commands to
// inspect and populate a workspace and the command that runs the server.
//
// The package is organized into several subpackages:
//
//   - checkout: checkout, checkin and log (the advisory lock workflow)
//   - entity: Commands to inspect and create workspace entities (get, create, ls)
//   - serve: Commands for starting and configuring the dCheck server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dcheck --help for a list of all commands.
package cmd
