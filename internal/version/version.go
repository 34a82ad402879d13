package version

import (
	"fmt"
	"runtime"
)

const (
	Version = "0.3.0"
)

// Info is the one line printed by --version
func Info() string {
	return fmt.Sprintf("provedores v%s (%s %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
