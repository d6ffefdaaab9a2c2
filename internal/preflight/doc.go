// Package preflight provides readiness checks for the directories, desktop
// tools, and remote services screensolve depends on.
//
// The daemon runs CheckSystemDeps at startup and reports the results through
// its status; the CLI "screensolve status" command additionally calls
// CheckSolver and, when the bundled server uses Ollama, CheckOllama.
package preflight
