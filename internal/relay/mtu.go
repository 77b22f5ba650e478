package relay

import (
	"encoding/binary"
	"errors"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ipfix-enricher/internal/config"
	"ipfix-enricher/internal/log"
)

// probeSizes are the graduated datagram sizes tried against the path.
var probeSizes = []int{1500, 1400, 1300, 1200}

// udpOverhead is the IP plus UDP header cost subtracted from a raw MTU.
const udpOverhead = 28

// ProbeMTU sends padded probe datagrams to the destination and derives a
// transmission ceiling from the largest size the stack accepted, minus
// header overhead, clamped between the backoff floor and maxSize. Probing
// is best-effort: when the probe socket cannot be opened the configured
// ceiling stands.
func ProbeMTU(dest config.EndpointConfig, maxSize int) int {
	logger := log.GetLogger()
	logger.Infof("Discovering path MTU to %s...", dest.Host)

	conn, err := net.Dial("udp4", dest.Addr())
	if err != nil {
		logger.Debugf("MTU probe socket: %v", err)
		return maxSize
	}
	defer conn.Close()

	best := ceilingFloor
	for _, size := range probeSizes {
		if _, err := conn.Write(probePacket(size)); err != nil {
			var errno syscall.Errno
			if errors.As(err, &errno) && errno == unix.EMSGSIZE {
				logger.Debugf("MTU %d bytes: too large", size)
			} else {
				logger.Debugf("MTU %d bytes: error %v", size, err)
			}
			continue
		}
		if size > best {
			best = size
		}
		logger.Debugf("MTU %d bytes: OK", size)
	}

	discovered := best - udpOverhead
	ceiling := discovered
	if ceiling > maxSize {
		ceiling = maxSize
	}
	if ceiling < ceilingFloor {
		ceiling = ceilingFloor
	}

	logger.Infof("Path MTU discovered: %d bytes", discovered)
	logger.Infof("Using max packet size: %d bytes", ceiling)
	return ceiling
}

// probePacket builds a zero-padded probe of exactly size bytes with a
// small header: message type, probed size, send time.
func probePacket(size int) []byte {
	pkt := make([]byte, size)
	binary.BigEndian.PutUint16(pkt[0:2], 10)
	binary.BigEndian.PutUint16(pkt[2:4], uint16(size))
	binary.BigEndian.PutUint32(pkt[4:8], uint32(time.Now().Unix()))
	return pkt
}
