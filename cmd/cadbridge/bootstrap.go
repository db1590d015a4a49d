package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/cadbridge"
	"github.com/aretw0/cadbridge/internal/config"
	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/adapters/redis"
	"github.com/aretw0/cadbridge/pkg/channel"
	"github.com/aretw0/cadbridge/pkg/ports"
	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newDialer(c config.Config) (channel.Dialer, error) {
	switch c.Host.Transport {
	case config.TransportWebSocket:
		return channel.WebSocketDialer{URL: c.Host.URL, HandshakeTimeout: c.Host.DialTimeout}, nil
	case config.TransportTCP:
		framing, err := wire.ParseFraming(c.Host.Framing)
		if err != nil {
			return nil, err
		}
		return channel.TCPDialer{Address: c.Host.Address, Framing: framing, Timeout: c.Host.DialTimeout}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", c.Host.Transport)
	}
}

// newBridge builds the client side. reg may be nil.
func newBridge(c config.Config, reg prometheus.Registerer) (*cadbridge.Bridge, error) {
	dialer, err := newDialer(c)
	if err != nil {
		return nil, err
	}
	opts := []cadbridge.Option{
		cadbridge.WithTimeout(c.Channel.RequestTimeout),
		cadbridge.WithLogger(logger),
	}
	if reg != nil {
		opts = append(opts, cadbridge.WithMetrics(reg))
	}
	return cadbridge.New(dialer, opts...), nil
}

func newJournal(c config.Config) (ports.JournalStore, func() error) {
	switch c.Journal.Backend {
	case config.JournalRedis:
		j := redis.New(c.Journal.RedisAddr, c.Journal.Password, c.Journal.RedisDB,
			redis.WithPrefix(c.Journal.Prefix),
			redis.WithMaxEntries(c.Journal.MaxEntries),
			redis.WithTTL(c.Journal.TTL),
		)
		return j, j.Close
	default:
		return memory.NewJournal(c.Journal.MaxEntries), func() error { return nil }
	}
}
