package lisp

// ElispVersion is the version reported by emacs-version and the CLI.
const ElispVersion = "0.4"

// Interface for a profiler
type Profiler interface {
	// Is the profiler enabled?
	IsEnabled() bool
	// Enable the profiler
	Enable() error
	// End the profiling session and output summary lines
	Complete() error
	// Start marks the entry of a function call and returns a function
	// which marks its exit.
	Start(c *Context, fn Value) func()
}
