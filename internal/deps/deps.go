// Package deps reports whether the external desktop tools screensolve shells
// out to are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external tool. CommandLine may be a full configured
// command ("import -window {surface} png:-"); only its first field is looked up.
type Requirement struct {
	Name        string
	CommandLine string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Binary returns the executable named by a command line.
func Binary(commandLine string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(commandLine), " ")
	return name
}

// CheckBinaries looks each requirement up on PATH, in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = check(req)
	}
	return results
}

func check(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     Binary(req.CommandLine),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("%s is not on PATH", st.Command)
		return st
	}
	st.Path, st.Available = path, true
	return st
}

// Missing filters statuses down to required tools that were not found.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if s.Optional || s.Available {
			continue
		}
		out = append(out, s)
	}
	return out
}
