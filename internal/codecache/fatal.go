package codecache

import (
	"fmt"
	"os"
)

// bugf aborts the process with a diagnostic. It is reserved for conditions
// the runtime cannot survive: losing the ability to map or execute its own
// generated code, or an OS reporting implausible configuration values.
func bugf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "opal: bug: "+format+"\n", args...)
	os.Exit(1)
}
