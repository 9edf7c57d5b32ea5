package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"slabq/pkg/config"
	"slabq/pkg/logging"
	"slabq/pkg/metrics"
)

// Acceptor is the single thread that owns the listening socket and its
// own epoll event loop, and hands every accepted connection to the next
// worker in strict round robin.
type Acceptor struct {
	lfd     int
	epfd    int
	workers []*Worker
	last    int

	connArenaSize int
	rbufInit      int
}

// NewAcceptor binds and listens on cfg's address. A bind/listen/socket
// failure is a fatal startup error and is returned for the caller to log
// and exit non-zero.
func NewAcceptor(cfg *config.Config, workers []*Worker) (*Acceptor, error) {
	lfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(lfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := resolveIPv4(cfg.Server.IP)
	if err != nil {
		unix.Close(lfd)
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: cfg.Server.Port, Addr: addr}
	if err := unix.Bind(lfd, sa); err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(lfd, 1024); err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, lfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(lfd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(lfd)
		return nil, fmt.Errorf("epoll_ctl: %w", err)
	}

	return &Acceptor{
		lfd:           lfd,
		epfd:          epfd,
		workers:       workers,
		last:          -1,
		connArenaSize: config.ParseSize(cfg.Queue.PoolSize),
		rbufInit:      config.ParseSize(cfg.Conn.RBufInitSize),
	}, nil
}

// Run blocks accepting connections and dispatching them to workers until
// a fatal epoll error occurs.
func (a *Acceptor) Run() {
	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(a.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logging.Log.Error("acceptor epoll_wait failed", "err", err)
			return
		}
		if n == 0 {
			continue
		}
		a.acceptReady()
	}
}

// acceptReady drains every connection currently queued in the listen
// backlog, matching the level-triggered nature of epoll on the listening
// fd.
func (a *Acceptor) acceptReady() {
	for {
		fd, _, err := unix.Accept4(a.lfd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR {
				continue
			}
			logging.Log.Warn("accept error", "err", err)
			return
		}

		w := a.nextWorker()
		c := NewConn(fd, a.connArenaSize, a.rbufInit, w.rbufMax)
		metrics.ConnectionsTotal.Inc()
		if err := w.Enqueue(c); err != nil {
			// The connection is already linked into the worker's pending
			// FIFO; a failed notification write leaves it there rather
			// than crashing the acceptor.
			logging.Log.Warn("notify pipe write failed", "worker", w.ID, "err", err)
		}
	}
}

func (a *Acceptor) nextWorker() *Worker {
	a.last = (a.last + 1) % len(a.workers)
	return a.workers[a.last]
}

func resolveIPv4(ip string) ([4]byte, error) {
	var out [4]byte
	if ip == "" || ip == "0.0.0.0" {
		return out, nil
	}
	parsed := net.ParseIP(ip)
	v4 := parsed.To4()
	if v4 == nil {
		return out, fmt.Errorf("invalid bind address %q", ip)
	}
	copy(out[:], v4)
	return out, nil
}
