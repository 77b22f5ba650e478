package relay

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/stats"
)

// scriptWriter replays a fixed error sequence, then succeeds. Successful
// writes are recorded.
type scriptWriter struct {
	errs  []error
	wrote [][]byte
}

func (w *scriptWriter) Write(p []byte) (int, error) {
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	w.wrote = append(w.wrote, append([]byte(nil), p...))
	return len(p), nil
}

// sendErr wraps an errno the way a real conn.Write failure surfaces it.
func sendErr(errno syscall.Errno) error {
	return &net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", errno)}
}

func testSender(w *scriptWriter, ceiling int) (*Sender, *Buffer, *stats.Collector) {
	buffer := NewBuffer(100)
	collector := stats.NewCollector(false, 0)
	dest := config.EndpointConfig{Host: "10.0.0.1", Port: 9995}
	s := NewSender(buffer, collector, dest, ceiling)
	s.conn = w
	s.lastSend = time.Now()
	return s, buffer, collector
}

func TestSendSuccess(t *testing.T) {
	w := &scriptWriter{}
	s, _, c := testSender(w, 1400)
	s.consecutiveErrs = 3

	s.send(context.Background(), []byte("payload"))

	if len(w.wrote) != 1 || string(w.wrote[0]) != "payload" {
		t.Fatalf("wrote = %q", w.wrote)
	}
	snap := c.Snapshot()
	if snap.Sent != 1 || snap.BytesSent != 7 {
		t.Errorf("Sent/BytesSent = %d/%d", snap.Sent, snap.BytesSent)
	}
	if s.consecutiveErrs != 0 {
		t.Error("Success did not reset the error streak")
	}
}

func TestSendOversizedDropped(t *testing.T) {
	w := &scriptWriter{}
	s, _, c := testSender(w, 100)

	s.send(context.Background(), make([]byte, 150))
	s.send(context.Background(), make([]byte, 101))

	if len(w.wrote) != 0 {
		t.Error("Oversized packet was transmitted")
	}
	if snap := c.Snapshot(); snap.Oversized != 2 || snap.Sent != 0 {
		t.Errorf("Oversized/Sent = %d/%d", snap.Oversized, snap.Sent)
	}
}

func TestSendEMSGSIZEShrinksCeiling(t *testing.T) {
	w := &scriptWriter{errs: []error{sendErr(unix.EMSGSIZE)}}
	s, _, c := testSender(w, 1400)

	s.send(context.Background(), make([]byte, 500))

	if got := s.Ceiling(); got != 1260 {
		t.Errorf("Ceiling after EMSGSIZE = %d, want 1260", got)
	}
	snap := c.Snapshot()
	if snap.Errors != 1 || snap.ErrorTypes["EMSGSIZE"] != 1 {
		t.Errorf("Error accounting = %d/%v", snap.Errors, snap.ErrorTypes)
	}
}

func TestCeilingNeverBelowFloor(t *testing.T) {
	w := &scriptWriter{}
	s, _, _ := testSender(w, 600)

	for i := 0; i < 50; i++ {
		s.handleSendError(context.Background(), nil, sendErr(unix.EMSGSIZE))
		if got := s.Ceiling(); got < ceilingFloor {
			t.Fatalf("Ceiling %d fell below %d", got, ceilingFloor)
		}
	}
	if got := s.Ceiling(); got != ceilingFloor {
		t.Errorf("Ceiling = %d, want floor %d", got, ceilingFloor)
	}
}

func TestSendEAGAINRequeues(t *testing.T) {
	w := &scriptWriter{errs: []error{sendErr(unix.EAGAIN)}}
	s, buffer, c := testSender(w, 1400)

	pkt := []byte("queued again")
	s.send(context.Background(), pkt)

	if buffer.Len() != 1 {
		t.Fatalf("Buffer length = %d, want 1", buffer.Len())
	}
	back := buffer.GetBatch(1)
	if string(back[0]) != "queued again" {
		t.Errorf("Requeued packet = %q", back[0])
	}
	// EAGAIN is backpressure, not a counted failure.
	if snap := c.Snapshot(); snap.Errors != 0 {
		t.Errorf("Errors = %d, want 0", snap.Errors)
	}
}

func TestSendEPERMLoggedOnce(t *testing.T) {
	w := &scriptWriter{errs: []error{sendErr(unix.EPERM), sendErr(unix.EPERM)}}
	s, _, c := testSender(w, 1400)

	s.send(context.Background(), []byte("x"))
	if !s.epermLogged {
		t.Error("EPERM hint flag not set after first failure")
	}
	s.send(context.Background(), []byte("x"))

	if snap := c.Snapshot(); snap.ErrorTypes["EPERM"] != 2 {
		t.Errorf("EPERM count = %d, want 2", snap.ErrorTypes["EPERM"])
	}
}

func TestUnclassifiedErrorStreakResets(t *testing.T) {
	w := &scriptWriter{}
	s, _, c := testSender(w, 1400)

	// A cancelled context makes the cooldown pause return immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("boom")
	for i := 0; i < consecutiveErrorLimit+1; i++ {
		s.handleSendError(ctx, nil, boom)
	}

	if s.consecutiveErrs != 0 {
		t.Errorf("consecutiveErrs = %d, want 0 after cooldown", s.consecutiveErrs)
	}
	snap := c.Snapshot()
	if snap.ErrorTypes["*errors.errorString"] != int64(consecutiveErrorLimit+1) {
		t.Errorf("ErrorTypes = %v", snap.ErrorTypes)
	}
}

func TestErrorName(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{sendErr(unix.EMSGSIZE), "EMSGSIZE"},
		{sendErr(unix.ECONNREFUSED), "ECONNREFUSED"},
		{unix.EPERM, "EPERM"},
		{syscall.Errno(0xffff), "errno_65535"},
		{errors.New("boom"), "*errors.errorString"},
	}
	for _, tc := range cases {
		if got := errorName(tc.err); got != tc.want {
			t.Errorf("errorName(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestSenderRunDrainsBuffer(t *testing.T) {
	w := &scriptWriter{}
	s, buffer, c := testSender(w, 1400)

	for _, p := range []string{"one", "two", "three"} {
		buffer.Put([]byte(p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.Snapshot().Sent < 3 {
		if time.Now().After(deadline) {
			t.Fatal("Sender did not drain the buffer")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sender did not stop on cancel")
	}

	if len(w.wrote) != 3 || string(w.wrote[0]) != "one" || string(w.wrote[2]) != "three" {
		t.Errorf("Send order = %q", w.wrote)
	}
	if buffer.Len() != 0 {
		t.Errorf("Buffer not drained: %d left", buffer.Len())
	}
}

func TestCheckStallResetsClock(t *testing.T) {
	w := &scriptWriter{}
	s, _, _ := testSender(w, 1400)

	s.lastSend = time.Now().Add(-stallAfter - time.Second)
	s.checkStall()

	if time.Since(s.lastSend) > time.Second {
		t.Error("Stall check did not reset the send clock")
	}
}
