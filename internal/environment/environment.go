// Package environment provides typed access to process-start
// configuration (spec §6). Scheduler core components read none of
// these directly; they are consumed by the composition root and by
// external collaborators named out of scope in spec §1.
package environment

import "os"

// Environment exposes the process-start configuration named in spec
// §6. Grounded on the teacher's direct os.Getenv reads (e.g.
// cmd/onboard.go, internal/tracing/collector.go) rather than a config
// framework — there is no indirection to add for three scalar values.
type Environment struct {
	OpenAIAPIKey string
	Root         string
	ServerPort   string
}

// Load reads the environment variables named in spec §6.
func Load() Environment {
	return Environment{
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		Root:         os.Getenv("MY_ROOT"),
		ServerPort:   os.Getenv("MY_SERVER_PORT"),
	}
}

// WorkingDirectory returns the root directory under which the
// scheduler's repositories live, defaulting to the current directory
// when MY_ROOT is unset.
func (e Environment) WorkingDirectory() string {
	if e.Root != "" {
		return e.Root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
