// Package sysopt applies best-effort process and kernel tuning for
// high-rate UDP relaying. Everything here degrades silently or to a debug
// line when the process lacks privileges.
package sysopt

import (
	"os"

	"golang.org/x/sys/unix"

	"ipfix-enricher/internal/log"
)

var sysctlSettings = []struct {
	path  string
	value string
}{
	{"/proc/sys/net/core/wmem_max", "16777216"},
	{"/proc/sys/net/core/rmem_max", "16777216"},
	{"/proc/sys/net/core/wmem_default", "4194304"},
	{"/proc/sys/net/core/rmem_default", "4194304"},
	{"/proc/sys/net/core/netdev_max_backlog", "10000"},
	{"/proc/sys/net/ipv4/udp_mem", "102400 873800 16777216"},
}

// ApplySysctl pushes the network tuning values into procfs.
func ApplySysctl() {
	logger := log.GetLogger()
	for _, s := range sysctlSettings {
		if err := os.WriteFile(s.path, []byte(s.value), 0o644); err != nil {
			logger.Debugf("Could not optimize %s: %v", s.path, err)
		}
	}
	logger.Info("System optimizations applied")
}

// RaisePriority moves the process to a higher scheduling priority.
func RaisePriority() {
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, -10)
}

// RaiseFileLimit lifts the descriptor limit so socket buffers and log
// rotation never compete for descriptors under load.
func RaiseFileLimit() {
	_ = unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Cur: 65536, Max: 65536})
}
