package relay

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketBufferSizes are the kernel buffer candidates, tried largest-first.
var socketBufferSizes = []int{16 << 20, 8 << 20, 4 << 20, 2 << 20}

func reuseAddr(network, address string, c syscall.RawConn) error {
	var err error
	controlErr := c.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if controlErr != nil {
		err = controlErr
	}
	return err
}

// setSocketBuffer applies the first candidate size the kernel actually
// grants for opt (SO_RCVBUF or SO_SNDBUF) and returns it, or 0 when every
// candidate is clamped down. The kernel accepts oversize requests silently,
// so the only way to know a candidate stuck is to read the option back
// (the value comes back doubled for bookkeeping). Failure is fine; the
// socket keeps its default.
func setSocketBuffer(conn *net.UDPConn, opt int) int {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0
	}
	for _, size := range socketBufferSizes {
		var serr error
		granted := 0
		cerr := raw.Control(func(fd uintptr) {
			if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, size); serr != nil {
				return
			}
			granted, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt)
		})
		if cerr == nil && serr == nil && granted >= size {
			return size
		}
	}
	return 0
}

// enablePMTUDiscovery makes the kernel set the DF bit and report EMSGSIZE
// for datagrams above the path MTU instead of fragmenting them.
func enablePMTUDiscovery(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	cerr := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MTU_DISCOVER, unix.IP_PMTUDISC_DO)
	})
	if cerr != nil {
		return cerr
	}
	return serr
}
