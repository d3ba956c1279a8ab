package statsd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

const maxDatagram = 65535

// Listener accepts statsd lines over UDP and TCP on the same address.
type Listener struct {
	udp net.PacketConn
	tcp net.Listener
	agg *Aggregator
	log *slog.Logger
}

// Listen binds both sockets. Port 0 picks a free port for each.
func Listen(bind string, port int, agg *Aggregator, log *slog.Logger) (*Listener, error) {
	addr := net.JoinHostPort(bind, strconv.Itoa(port))

	udp, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind statsd udp %s: %w", addr, err)
	}
	tcp, err := net.Listen("tcp", addr)
	if err != nil {
		udp.Close()
		return nil, fmt.Errorf("failed to bind statsd tcp %s: %w", addr, err)
	}

	log.Debug("binding statsd tcp and udp sockets", "udp", udp.LocalAddr().String(), "tcp", tcp.Addr().String())
	return &Listener{udp: udp, tcp: tcp, agg: agg, log: log}, nil
}

func (l *Listener) UDPAddr() net.Addr { return l.udp.LocalAddr() }

func (l *Listener) TCPAddr() net.Addr { return l.tcp.Addr() }

// Serve reads from both sockets until ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		l.udp.Close()
		l.tcp.Close()
		return nil
	})
	g.Go(func() error { return l.serveUDP(ctx) })
	g.Go(func() error { return l.serveTCP(ctx) })

	return g.Wait()
}

func (l *Listener) serveUDP(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := l.udp.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("statsd udp read: %w", err)
		}
		if err := l.agg.Submit(ctx, string(buf[:n])); err != nil {
			return nil
		}
	}
}

func (l *Listener) serveTCP(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.tcp.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("statsd tcp accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.handleConn(ctx, conn)
		}()
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if err := l.agg.Submit(ctx, scanner.Text()); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		l.log.Warn("statsd tcp connection error", "remote", conn.RemoteAddr().String(), "error", err)
	}
}
