package stats

import "github.com/prometheus/procfs"

// RSSMegabytes reads the resident set size of the current process from
// /proc. Zero means the read failed and the report prints RSS 0.0.
func RSSMegabytes() float64 {
	p, err := procfs.Self()
	if err != nil {
		return 0
	}
	status, err := p.NewStatus()
	if err != nil {
		return 0
	}
	return float64(status.VmRSS) / (1024 * 1024)
}
