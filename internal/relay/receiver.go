package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"ipfix-enricher/internal/log"
	"ipfix-enricher/internal/stats"
)

const (
	// maxDatagram is the largest UDP payload a single receive can return.
	maxDatagram = 65535
	// drainLimit caps how many queued datagrams one readiness wake drains.
	drainLimit = 100
	// readyWindow bounds how long a wake blocks waiting for traffic.
	readyWindow = 10 * time.Millisecond
)

// Receiver owns the inbound socket. Each Poll blocks at most the readiness
// window and drains every datagram already queued, up to the drain limit,
// in a single recvmmsg call.
type Receiver struct {
	conn  *net.UDPConn
	batch *ipv4.PacketConn
	msgs  []ipv4.Message

	stats *stats.Collector
	log   log.Logger
}

// OpenReceiver binds the inbound socket and applies the receive-side
// options. Bind failure is fatal to startup and returned as-is.
func OpenReceiver(ctx context.Context, addr string, collector *stats.Collector) (*Receiver, error) {
	logger := log.GetLogger()

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)

	if size := setSocketBuffer(conn, unix.SO_RCVBUF); size > 0 {
		logger.Debugf("Receive buffer set to %d bytes", size)
	}

	msgs := make([]ipv4.Message, drainLimit)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, maxDatagram)}
	}

	return &Receiver{
		conn:  conn,
		batch: ipv4.NewPacketConn(conn),
		msgs:  msgs,
		stats: collector,
		log:   logger,
	}, nil
}

// Poll waits up to the readiness window, then returns whatever datagrams
// were queued on the socket. A nil slice with a nil error means the window
// elapsed with nothing pending; that is the normal idle outcome, not an
// error.
func (r *Receiver) Poll() ([][]byte, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(readyWindow)); err != nil {
		return nil, err
	}

	n, err := r.batch.ReadBatch(r.msgs, 0)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		size := r.msgs[i].N
		buf := r.msgs[i].Buffers[0]

		// The message buffers are reused on the next wake, so hand each
		// packet onward as its own allocation trimmed to the bytes read.
		pkt := make([]byte, size)
		copy(pkt, buf[:size])

		r.stats.PacketReceived(size)
		out = append(out, pkt)
	}
	return out, nil
}

// LocalAddr reports the bound address, mainly for tests binding port 0.
func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *Receiver) Close() error {
	return r.conn.Close()
}
