// Package exitcode defines exit codes for the CLI.
package exitcode

// Exit codes returned by projectdesk commands.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError covers bad arguments, invalid project fields and
	// references to projects that are not in the list.
	UserError = 1

	// AuthError covers missing or rejected credentials, records the store
	// refuses to the signed-in user, and unusable configuration.
	AuthError = 2

	// BackendError indicates the store was unreachable or answered unexpectedly.
	BackendError = 3
)
