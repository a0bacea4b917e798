// Package sockopt applies the Linux socket and line-discipline tuning
// spec.md §6 requires: termios configuration for the serial dialect and
// TCP keep-alive interval/time/retry-count for the TCP dialect, neither of
// which net.TCPConn or a plain os.File exposes on its own.
package sockopt

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// SupportedBauds is the fixed set of baud rates spec.md §4.4 allows for
// serial Connect options.
var SupportedBauds = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// ConfigureTermios puts the serial line referenced by f into raw 8N1 mode
// at baud, with no flow control, mirroring the teacher's own pattern of
// reaching for raw ioctls (host/hal/linux/usbfs.go) rather than a terminal
// library, now via golang.org/x/sys/unix instead of bare syscall numbers.
func ConfigureTermios(f *os.File, baud int) error {
	speed, ok := SupportedBauds[baud]
	if !ok {
		return fmt.Errorf("sockopt: unsupported baud rate %d", baud)
	}

	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, ioctlGets)
	if err != nil {
		return fmt.Errorf("sockopt: get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSets, t); err != nil {
		return fmt.Errorf("sockopt: set termios: %w", err)
	}
	return setSpeed(fd, t, speed)
}

func setSpeed(fd int, t *unix.Termios, speed uint32) error {
	t.Ispeed = speed
	t.Ospeed = speed
	if err := unix.IoctlSetTermios(fd, ioctlSets, t); err != nil {
		return fmt.Errorf("sockopt: set baud rate: %w", err)
	}
	return nil
}

// KeepAlive tunes TCP keep-alive beyond what net.TCPConn.SetKeepAlivePeriod
// can express: a distinct probe interval, idle time before the first
// probe, and probe retry count before the connection is declared dead
// (spec.md §6: interval 5s, time 5s, retry 5).
type KeepAlive struct {
	IdleSeconds     int
	IntervalSeconds int
	RetryCount      int
}

// DefaultKeepAlive returns spec.md §6's TCP keep-alive parameters.
func DefaultKeepAlive() KeepAlive {
	return KeepAlive{IdleSeconds: 5, IntervalSeconds: 5, RetryCount: 5}
}

// ConfigureKeepAlive enables TCP keep-alive on conn and applies ka via
// SO_KEEPALIVE + TCP_KEEPIDLE/TCP_KEEPINTVL/TCP_KEEPCNT, grounded in the
// same raw-fd-control idiom runZeroInc-sockstats uses to read tcp_info
// (sockstats.go's SyscallConn().Control pattern), applied here to write
// socket options instead of reading them.
func ConfigureKeepAlive(conn net.Conn, ka KeepAlive) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return fmt.Errorf("sockopt: %T is not a *net.TCPConn", conn)
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("sockopt: syscall conn: %w", err)
	}

	var setErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		ifd := int(fd)
		if e := unix.SetsockoptInt(ifd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
			setErr = fmt.Errorf("sockopt: SO_KEEPALIVE: %w", e)
			return
		}
		if e := unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, ka.IdleSeconds); e != nil {
			setErr = fmt.Errorf("sockopt: TCP_KEEPIDLE: %w", e)
			return
		}
		if e := unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, ka.IntervalSeconds); e != nil {
			setErr = fmt.Errorf("sockopt: TCP_KEEPINTVL: %w", e)
			return
		}
		if e := unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, ka.RetryCount); e != nil {
			setErr = fmt.Errorf("sockopt: TCP_KEEPCNT: %w", e)
			return
		}
	})
	if ctrlErr != nil {
		return fmt.Errorf("sockopt: control: %w", ctrlErr)
	}
	return setErr
}

const (
	ioctlGets = unix.TCGETS
	ioctlSets = unix.TCSETS
)
