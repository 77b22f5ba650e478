package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeProvider struct{}

func (fakeProvider) BufferLen() int        { return 7 }
func (fakeProvider) BufferPeak() int       { return 42 }
func (fakeProvider) MaxPacketSeen() int    { return 1392 }
func (fakeProvider) Ceiling() int          { return 1400 }
func (fakeProvider) Uptime() time.Duration { return 90 * time.Second }

func TestRegisterServiceExposesGauges(t *testing.T) {
	RegisterService(fakeProvider{})
	// Repeat registration must not panic.
	RegisterService(fakeProvider{})

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	for _, want := range []string{
		"ipfix_enricher_buffer_packets 7",
		"ipfix_enricher_buffer_peak_packets 42",
		"ipfix_enricher_packet_size_max_bytes 1392",
		"ipfix_enricher_transmission_ceiling_bytes 1400",
		"ipfix_enricher_uptime_seconds 90",
		"ipfix_enricher_packets_processed_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Scrape output missing %q", want)
		}
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "")
	if s.path != "/metrics" {
		t.Errorf("Default path = %q", s.path)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestServerStopWithoutStart(t *testing.T) {
	if err := NewServer(":9101", "/metrics").Stop(context.Background()); err != nil {
		t.Fatalf("Stop on idle server: %v", err)
	}
}
