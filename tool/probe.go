package tool

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

var ProbeTimeout = 2 * time.Second

// ProbeHost sends one echo request to host and returns the round-trip time.
// It runs unprivileged (UDP ping), which Linux allows when net.ipv4.ping_group_range permits.
func ProbeHost(host string) (time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger for %s: %w", host, err)
	}
	pinger.Count = 1
	pinger.Timeout = ProbeTimeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("failed to ping %s: %w", host, err)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("%s did not answer within %s", host, ProbeTimeout)
	}
	return stats.AvgRtt, nil
}
