// Package compileinfo reports the provenance of the running binary from the
// build metadata the Go toolchain embeds at compile time.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type BuildInfo struct {
	MainPath   string
	GoVersion  string
	Revision   string
	RevisionAt string
	Dirty      bool
}

func (b BuildInfo) String() string {
	dirty := ""
	if b.Dirty {
		dirty = " The working tree had uncommitted changes."
	}

	return fmt.Sprintf("This %s binary was built with %s from revision %v committed at %v.%s", b.MainPath, b.GoVersion, b.Revision, b.RevisionAt, dirty)
}

func Get() BuildInfo {
	out := BuildInfo{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.MainPath = bi.Path
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Revision = s.Value
		case "vcs.time":
			out.RevisionAt = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
