package relay

import (
	"encoding/binary"
	"net"
	"testing"

	"ipfix-enricher/internal/config"
)

// probeTarget binds a throwaway loopback socket so probes have a live
// destination and no ICMP refusals come back.
func probeTarget(t *testing.T) config.EndpointConfig {
	t.Helper()
	lis, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { lis.Close() })
	return config.EndpointConfig{
		Host: "127.0.0.1",
		Port: lis.LocalAddr().(*net.UDPAddr).Port,
	}
}

func TestProbeMTUOnLoopback(t *testing.T) {
	dest := probeTarget(t)

	// Loopback takes every probe size, so the result is 1500 minus the
	// 28-byte header overhead, capped by the configured maximum.
	cases := []struct {
		maxSize int
		want    int
	}{
		{1400, 1400},
		{1200, 1200},
		{65535, 1472},
	}
	for _, tc := range cases {
		if got := ProbeMTU(dest, tc.maxSize); got != tc.want {
			t.Errorf("ProbeMTU(maxSize=%d) = %d, want %d", tc.maxSize, got, tc.want)
		}
	}
}

func TestProbeMTUUnresolvableDest(t *testing.T) {
	dest := config.EndpointConfig{Host: "host.invalid", Port: 9995}
	if got := ProbeMTU(dest, 1400); got != 1400 {
		t.Errorf("ProbeMTU with dead destination = %d, want configured 1400", got)
	}
}

func TestProbePacketLayout(t *testing.T) {
	pkt := probePacket(1300)
	if len(pkt) != 1300 {
		t.Fatalf("Probe length = %d", len(pkt))
	}
	if binary.BigEndian.Uint16(pkt[0:2]) != 10 {
		t.Errorf("Probe type = %d", binary.BigEndian.Uint16(pkt[0:2]))
	}
	if binary.BigEndian.Uint16(pkt[2:4]) != 1300 {
		t.Errorf("Probe size field = %d", binary.BigEndian.Uint16(pkt[2:4]))
	}
	if binary.BigEndian.Uint32(pkt[4:8]) == 0 {
		t.Error("Probe timestamp missing")
	}
	for _, b := range pkt[8:] {
		if b != 0 {
			t.Fatal("Probe padding not zeroed")
		}
	}
}
