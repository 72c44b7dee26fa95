package sql

import (
	"fmt"
	"runtime"
)

const (
	ApplicationName = "planexec"
	MajorVersion    = 0
	MinorVersion    = 1
)

func ShortVersion() string {
	return fmt.Sprintf("%d.%d", MajorVersion, MinorVersion)
}

func Version() string {
	return fmt.Sprintf("Planexec %d.%d on %s %s, compiled by %s", MajorVersion, MinorVersion,
		runtime.GOARCH, runtime.GOOS, runtime.Version())
}
