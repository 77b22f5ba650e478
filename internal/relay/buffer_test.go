package relay

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 5; i++ {
		if !b.Put([]byte{byte(i)}) {
			t.Fatalf("Put %d rejected below capacity", i)
		}
	}

	batch := b.GetBatch(3)
	if len(batch) != 3 {
		t.Fatalf("GetBatch(3) returned %d packets", len(batch))
	}
	for i, pkt := range batch {
		if pkt[0] != byte(i) {
			t.Errorf("Packet %d out of order: %v", i, pkt)
		}
	}

	rest := b.GetBatch(10)
	if len(rest) != 2 || rest[0][0] != 3 || rest[1][0] != 4 {
		t.Errorf("Remaining batch wrong: %v", rest)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after draining", b.Len())
	}
}

func TestBufferEmptyGet(t *testing.T) {
	b := NewBuffer(4)
	if batch := b.GetBatch(10); batch != nil {
		t.Errorf("GetBatch on empty buffer = %v, want nil", batch)
	}
}

func TestBufferOverflowDropsAndCounts(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 3; i++ {
		b.Put([]byte{byte(i)})
	}

	for i := 0; i < 4; i++ {
		if b.Put([]byte{0xff}) {
			t.Fatal("Put accepted above capacity")
		}
		if b.Len() != 3 {
			t.Fatalf("Occupancy changed on rejected put: %d", b.Len())
		}
		if b.Dropped() != int64(i+1) {
			t.Fatalf("Dropped = %d after %d rejections", b.Dropped(), i+1)
		}
	}

	// Rejected packets must not displace queued ones.
	batch := b.GetBatch(10)
	if len(batch) != 3 || !bytes.Equal(batch[0], []byte{0}) {
		t.Errorf("Queue disturbed by rejected puts: %v", batch)
	}
}

func TestBufferNotify(t *testing.T) {
	b := NewBuffer(4)

	select {
	case <-b.Notify():
		t.Fatal("Notify fired before any Put")
	default:
	}

	b.Put([]byte{1})
	select {
	case <-b.Notify():
	case <-time.After(time.Second):
		t.Fatal("Notify did not fire after Put")
	}

	// The channel holds one pulse at most, so a burst of puts cannot
	// block the producer.
	for i := 0; i < 10; i++ {
		b.Put([]byte{byte(i)})
	}
}

func TestBufferAccountingUnderLoad(t *testing.T) {
	const total = 25000
	b := NewBuffer(20000)

	var drained int64
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			batch := b.GetBatch(50)
			drained += int64(len(batch))
			if batch == nil {
				select {
				case <-done:
					// Producer finished; drain whatever is left and stop.
					for {
						batch := b.GetBatch(50)
						if batch == nil {
							return
						}
						drained += int64(len(batch))
					}
				case <-time.After(time.Millisecond):
				}
			}
		}
	}()

	pkt := []byte("datagram")
	for i := 0; i < total; i++ {
		b.Put(pkt)
	}
	close(done)
	wg.Wait()

	if got := b.Dropped() + drained + int64(b.Len()); got != total {
		t.Errorf("dropped(%d) + drained(%d) + remaining(%d) = %d, want %d",
			b.Dropped(), drained, b.Len(), got, total)
	}
}

func TestBufferReusesBackingArray(t *testing.T) {
	b := NewBuffer(100)
	for round := 0; round < 5; round++ {
		for i := 0; i < 100; i++ {
			if !b.Put([]byte(fmt.Sprintf("p%d", i))) {
				t.Fatalf("Put rejected at round %d item %d", round, i)
			}
		}
		if got := len(b.GetBatch(100)); got != 100 {
			t.Fatalf("Round %d drained %d packets", round, got)
		}
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped = %d across refill rounds", b.Dropped())
	}
}
