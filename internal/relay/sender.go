package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/log"
	"ipfix-enricher/internal/stats"
)

const (
	// sendBatch caps how many packets one iteration pulls from the buffer.
	sendBatch = 50
	// idleWait bounds the wait when the buffer turns up empty.
	idleWait = time.Millisecond
	// ceilingFloor is the smallest transmission ceiling EMSGSIZE backoff
	// may reach.
	ceilingFloor = 576
	// consecutiveErrorLimit is the unclassified-failure streak that
	// triggers the cooldown pause.
	consecutiveErrorLimit = 100
	errorCooldown         = time.Second
	// stallAfter is how long without a successful send before the stall
	// warning fires.
	stallAfter = 30 * time.Second
	// joinTimeout bounds how long shutdown waits for the sender to exit.
	joinTimeout = 5 * time.Second
)

// Sender drains the relay buffer and forwards packets to the collector on
// a dedicated goroutine. The transmission ceiling is written only here
// (and once by startup MTU probing, before the goroutine exists); everyone
// else reads it through Ceiling().
type Sender struct {
	conn   io.Writer
	buffer *Buffer
	stats  *stats.Collector
	log    log.Logger

	destAddr string
	destHost string
	destPort int

	ceiling atomic.Int64

	// State below is touched only by the sender goroutine.
	consecutiveErrs int
	lastSend        time.Time
	epermLogged     bool
}

func NewSender(buffer *Buffer, collector *stats.Collector, dest config.EndpointConfig, ceiling int) *Sender {
	s := &Sender{
		buffer:   buffer,
		stats:    collector,
		log:      log.GetLogger(),
		destAddr: dest.Addr(),
		destHost: dest.Host,
		destPort: dest.Port,
	}
	s.ceiling.Store(int64(ceiling))
	return s
}

// Ceiling returns the current transmission size ceiling.
func (s *Sender) Ceiling() int {
	return int(s.ceiling.Load())
}

// dialCollector opens the connected outbound socket and applies the
// send-side options. Dial failure is fatal to startup.
func dialCollector(addr string) (*net.UDPConn, error) {
	logger := log.GetLogger()

	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if size := setSocketBuffer(conn, unix.SO_SNDBUF); size > 0 {
		logger.Debugf("Send buffer set to %d bytes", size)
	}
	if err := enablePMTUDiscovery(conn); err == nil {
		logger.Info("Path MTU discovery enabled")
	}
	return conn, nil
}

// Run is the sender loop. It exits when ctx is cancelled; packets still in
// the buffer at that point are reported by the shutdown sequence, not here.
func (s *Sender) Run(ctx context.Context) {
	s.log.Info("Sender thread started")
	s.lastSend = time.Now()

	ticker := time.NewTicker(idleWait)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			s.log.Info("Sender thread terminated")
			return
		}

		packets := s.buffer.GetBatch(sendBatch)
		if packets == nil {
			select {
			case <-ctx.Done():
			case <-s.buffer.Notify():
			case <-ticker.C:
			}
			continue
		}

		for _, pkt := range packets {
			s.send(ctx, pkt)
		}
		s.checkStall()
	}
}

// checkStall warns when packets keep flowing through the loop but none has
// gone out for 30 seconds, then resets so the warning can fire again.
func (s *Sender) checkStall() {
	if time.Since(s.lastSend) > stallAfter {
		s.log.Warn("No packets sent for 30 seconds")
		s.lastSend = time.Now()
	}
}

func (s *Sender) send(ctx context.Context, pkt []byte) {
	ceiling := s.Ceiling()
	if len(pkt) > ceiling {
		if s.stats.Oversized() == 1 {
			s.log.Warnf("Oversized packet: %d bytes > %d MTU", len(pkt), ceiling)
			s.log.Warn("Dropping oversized packets to avoid fragmentation")
		}
		return
	}

	n, err := s.conn.Write(pkt)
	if err != nil {
		s.handleSendError(ctx, pkt, err)
		return
	}

	s.stats.Sent(n)
	s.consecutiveErrs = 0
	s.lastSend = time.Now()
}

func (s *Sender) handleSendError(ctx context.Context, pkt []byte, err error) {
	var errno syscall.Errno
	hasErrno := errors.As(err, &errno)

	switch {
	case hasErrno && errno == unix.EMSGSIZE:
		s.stats.SendError("EMSGSIZE")
		s.shrinkCeiling()

	case hasErrno && errno == unix.EPERM:
		s.stats.SendError("EPERM")
		if !s.epermLogged {
			s.log.Errorf("EPERM: Permission denied sending to %s", s.destAddr)
			s.log.Errorf("Fix with: iptables -I OUTPUT -p udp -d %s --dport %d -j ACCEPT", s.destHost, s.destPort)
			s.epermLogged = true
		}

	case hasErrno && errno == unix.EAGAIN:
		// EWOULDBLOCK is the same value on Linux. The packet goes back in
		// at the tail, losing its place; that reordering under
		// backpressure is accepted.
		s.buffer.Put(pkt)
		time.Sleep(idleWait)

	default:
		s.countError(err)
		s.consecutiveErrs++
		if s.consecutiveErrs > consecutiveErrorLimit {
			s.log.Warn("Too many send errors, pausing 1 second")
			select {
			case <-ctx.Done():
			case <-time.After(errorCooldown):
			}
			s.consecutiveErrs = 0
		}
	}
}

// countError records an unclassified failure under its name. Only the
// first few are logged so a broken socket cannot flood the log.
func (s *Sender) countError(err error) {
	name := errorName(err)
	if total := s.stats.SendError(name); total <= 10 {
		s.log.Errorf("Send failed: %s - %v", name, err)
	}
}

func (s *Sender) shrinkCeiling() {
	cur := s.Ceiling()
	if cur <= ceilingFloor {
		return
	}
	next := cur * 9 / 10
	if next < ceilingFloor {
		next = ceilingFloor
	}
	s.ceiling.Store(int64(next))
	s.log.Warnf("Reducing MTU from %d to %d after EMSGSIZE errors", cur, next)
}

// errorName yields the label a failure is counted under: the errno name
// when one is present, otherwise the Go error type.
func errorName(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}
		return fmt.Sprintf("errno_%d", int(errno))
	}
	return fmt.Sprintf("%T", err)
}
