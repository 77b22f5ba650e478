// Package relay implements the enrichment data path: receive, rewrite,
// buffer, forward, count.
package relay

import (
	"context"
	"errors"
	"net"
	"runtime"
	"time"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/log"
	"ipfix-enricher/internal/stats"
)

const (
	// processBatchSize and batchWindow bound how long received packets
	// wait before enrichment: a batch goes downstream when it is full or
	// when the window closes, whichever happens first.
	processBatchSize = 50
	batchWindow      = 10 * time.Millisecond

	// receiveErrorPause keeps a persistent receive failure from spinning
	// the loop.
	receiveErrorPause = 10 * time.Millisecond

	housekeepingInterval = 300 * time.Second
)

// Service owns the whole data path for the process lifetime: sockets,
// enricher, relay buffer, sender goroutine and the statistics collector.
type Service struct {
	cfg   *config.Config
	log   log.Logger
	stats *stats.Collector

	buffer   *Buffer
	enricher *Enricher
	sender   *Sender
	receiver *Receiver

	start time.Time
}

func New(cfg *config.Config) *Service {
	collector := stats.NewCollector(cfg.Debug.Enabled, cfg.Debug.MaxPackets)
	buffer := NewBuffer(cfg.Buffer.Capacity)
	return &Service{
		cfg:      cfg,
		log:      log.GetLogger(),
		stats:    collector,
		buffer:   buffer,
		enricher: NewEnricher(cfg.Enrich, collector),
		sender:   NewSender(buffer, collector, cfg.Destination, cfg.MTU.MaxPacketSize),
		start:    time.Now(),
	}
}

// The accessors below feed the scrape-time Prometheus gauges.
func (s *Service) BufferLen() int     { return s.buffer.Len() }
func (s *Service) BufferPeak() int    { return s.stats.BufferMax() }
func (s *Service) MaxPacketSeen() int { return s.stats.MaxPacketSeen() }
func (s *Service) Ceiling() int       { return s.sender.Ceiling() }
func (s *Service) Uptime() time.Duration {
	return time.Since(s.start)
}

// Run sets up the sockets, starts the sender and drives the main
// receive-enrich-enqueue loop until ctx is cancelled. Only socket setup
// can fail; everything after degrades gracefully and is surfaced through
// statistics.
func (s *Service) Run(ctx context.Context) error {
	receiver, err := OpenReceiver(ctx, s.cfg.Listen.Addr(), s.stats)
	if err != nil {
		s.log.Criticalf("Socket setup failed: %v", err)
		return err
	}
	s.receiver = receiver

	conn, err := dialCollector(s.cfg.Destination.Addr())
	if err != nil {
		receiver.Close()
		s.log.Criticalf("Socket setup failed: %v", err)
		return err
	}

	defer func() {
		receiver.Close()
		conn.Close()
		s.log.Info("Service stopped")
	}()

	s.log.Info("Sockets configured successfully")
	s.log.Infof("Listen on: %s", s.cfg.Listen.Addr())
	s.log.Infof("Forward to: %s", s.cfg.Destination.Addr())

	ceiling := s.cfg.MTU.MaxPacketSize
	if s.cfg.MTU.Probe {
		ceiling = ProbeMTU(s.cfg.Destination, ceiling)
	}
	// Both writes land before the sender goroutine starts.
	s.sender.conn = conn
	s.sender.ceiling.Store(int64(ceiling))

	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		s.sender.Run(ctx)
	}()

	s.log.Info("Service started successfully")
	if s.cfg.Debug.Enabled {
		s.log.Infof("Debug mode active for first %d matching packets", s.cfg.Debug.MaxPackets)
	}
	s.log.Info("Processing packets...")

	s.loop(ctx)

	s.log.Info("Shutting down...")
	select {
	case <-senderDone:
	case <-time.After(joinTimeout):
	}

	s.report()

	if remaining := s.buffer.Len(); remaining > 0 {
		s.log.Warnf("%d packets in buffer not sent", remaining)
	}
	return nil
}

func (s *Service) loop(ctx context.Context) {
	batch := make([][]byte, 0, processBatchSize)
	batchStart := time.Now()
	lastReport := time.Now()
	lastHousekeeping := time.Now()
	packetsSinceReport := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pkts, err := s.receiver.Poll()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Errorf("Processing error: %v", err)
			time.Sleep(receiveErrorPause)
			continue
		}

		if len(pkts) > 0 {
			batch = append(batch, pkts...)
			packetsSinceReport += len(pkts)
		}

		if len(batch) > 0 &&
			(len(pkts) == 0 || len(batch) >= processBatchSize || time.Since(batchStart) > batchWindow) {
			s.processBatch(batch)
			batch = batch[:0]
			batchStart = time.Now()
		}

		if packetsSinceReport >= s.cfg.Stats.PacketInterval || time.Since(lastReport) >= s.cfg.Stats.Interval {
			s.report()
			packetsSinceReport = 0
			lastReport = time.Now()
		}

		if time.Since(lastHousekeeping) >= housekeepingInterval {
			runtime.GC()
			lastHousekeeping = time.Now()
		}
	}
}

func (s *Service) processBatch(batch [][]byte) {
	for _, pkt := range batch {
		out, enriched := s.enricher.Enrich(pkt)
		if enriched {
			s.stats.Enriched()
		}
		s.buffer.Put(out)
		s.stats.BufferPeak(s.buffer.Len())
	}
}

// report writes one statistics block to the log and handles the two
// follow-ups tied to the reporting cadence: the low-success-rate alarm and
// switching off debug sampling once the warm-up window has passed.
func (s *Service) report() {
	snap := s.stats.Snapshot()
	uptime := time.Since(s.start)

	data := stats.ReportData{
		Stats:       snap,
		Dropped:     s.buffer.Dropped(),
		BufferSize:  s.buffer.Len(),
		Uptime:      uptime,
		MTU:         s.sender.Ceiling(),
		Destination: s.cfg.Destination.Addr(),
		MemoryMB:    stats.RSSMegabytes(),
		Timestamp:   time.Now(),
	}
	s.log.Info(data.Render())

	if rate := data.SuccessRate(); rate < 50 && snap.Processed > 100 {
		s.log.Criticalf("Low success rate: %.1f%% (sent %s/%s)",
			rate, stats.Comma(snap.Sent), stats.Comma(snap.Processed))
	}

	if uptime > s.cfg.Debug.Window {
		if s.stats.DisableDebug() {
			s.log.Infof("Debug mode disabled after %ds", int(uptime.Seconds()))
		}
	}
}
