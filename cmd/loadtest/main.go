// Command loadtest drives many concurrent typed requests against a set of
// replying actors with random delays and dropped replies, and reports how
// every request was resolved.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	promadapter "github.com/VenturaDelMonte/actor-framework/adapters/prometheus"
	"github.com/VenturaDelMonte/actor-framework/core/actor"
)

type (
	EchoRequest struct {
		Seq     int    `json:"seq" cbor:"seq"`
		Payload string `json:"payload" cbor:"payload"`
	}
	EchoReply struct {
		Seq int `json:"seq" cbor:"seq"`
	}
)

type stats struct {
	ok         atomic.Int64
	timeout    atomic.Int64
	failed     atomic.Int64
	remote     atomic.Int64
	mismatched atomic.Int64
}

func (s *stats) record(seq int, res *EchoReply, err error) {
	var remote *actor.RemoteError
	switch {
	case err == nil && res != nil && res.Seq == seq:
		s.ok.Add(1)
	case err == nil:
		s.mismatched.Add(1)
	case errors.Is(err, actor.ErrRequestTimeout):
		s.timeout.Add(1)
	case errors.Is(err, actor.ErrDeliveryFailed):
		s.failed.Add(1)
	case errors.As(err, &remote):
		s.remote.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *stats) total() int64 {
	return s.ok.Load() + s.timeout.Load() + s.failed.Load() + s.remote.Load() + s.mismatched.Load()
}

func main() {
	configPath := flag.String("config", "", "path to config file (yaml)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Log.logger()
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := promadapter.NewActorMetrics(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(log, cfg.MetricsAddr, reg)
	}

	servers := make([]actor.TypedRef[EchoRequest, EchoReply], cfg.Servers)
	for i := range servers {
		a := newServer(ctx, fmt.Sprintf("server-%d", i), cfg, log, m)
		defer a.Stop()
		servers[i] = actor.MustAs[EchoRequest, EchoReply](a)
	}

	log.Info("starting load test",
		slog.Int("requests", cfg.Requests),
		slog.Int("workers", cfg.Workers),
		slog.Int("servers", cfg.Servers),
		slog.Duration("timeout", cfg.Timeout),
		slog.String("codec", cfg.Codec),
	)

	var (
		st   stats
		wg   sync.WaitGroup
		jobs = make(chan int)
	)
	startAt := time.Now()

	for w := range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, w, cfg, log, m, servers, jobs, &st)
		}()
	}

	go func() {
		defer close(jobs)
		for seq := 1; seq <= cfg.Requests; seq++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- seq:
			}
		}
	}()

	wg.Wait()
	elapsed := time.Since(startAt)

	log.Info("load test done",
		slog.Int64("total", st.total()),
		slog.Int64("ok", st.ok.Load()),
		slog.Int64("timeout", st.timeout.Load()),
		slog.Int64("delivery_failed", st.failed.Load()),
		slog.Int64("remote_error", st.remote.Load()),
		slog.Int64("mismatched", st.mismatched.Load()),
		slog.Duration("elapsed", elapsed),
		slog.Float64("req_per_sec", float64(st.total())/elapsed.Seconds()),
	)

	if st.mismatched.Load() > 0 {
		os.Exit(1)
	}
}

func runWorker(
	ctx context.Context,
	id int,
	cfg Config,
	log *slog.Logger,
	m actor.ActorMetrics,
	servers []actor.TypedRef[EchoRequest, EchoReply],
	jobs <-chan int,
	st *stats,
) {
	self := actor.NewScoped(actor.ScopedOptions{
		ID:      fmt.Sprintf("worker-%d", id),
		Context: ctx,
		Logger:  log,
		Metrics: m,
		Codec:   cfg.Codec,
	})
	defer self.Close()

	for seq := range jobs {
		opts := []actor.RequestOption{actor.WithTimeout(cfg.Timeout)}
		if rand.Float64() < cfg.HighPriorityRate {
			opts = append(opts, actor.WithPriority(actor.PriorityHigh))
		}

		target := servers[seq%len(servers)]
		res, err := actor.BlockingRequest(self, target, EchoRequest{Seq: seq, Payload: "ping"}, opts...).Receive(ctx)
		if ctx.Err() != nil {
			return
		}
		st.record(seq, res, err)
	}
}

func newServer(ctx context.Context, id string, cfg Config, log *slog.Logger, m actor.ActorMetrics) actor.Actor {
	return actor.TypedHandlers(
		actor.HandleRequest[EchoRequest, EchoReply](func(hc actor.HandlerCtx, req EchoRequest) (*EchoReply, error) {
			if rand.Float64() < cfg.DropRate {
				// claim the reply and never deliver it
				actor.NewPromise[EchoReply](hc)
				return nil, nil
			}

			delay := time.Duration(rand.Int64N(int64(cfg.MaxDelay) + 1))
			if delay == 0 {
				return &EchoReply{Seq: req.Seq}, nil
			}

			p := actor.NewPromise[EchoReply](hc)
			hc.Schedule(func() {
				time.Sleep(delay)
				if err := p.Deliver(hc, &EchoReply{Seq: req.Seq}); err != nil {
					hc.Log().Debug("reply not delivered", slog.Int("seq", req.Seq), slog.Any("error", err))
				}
			})
			return nil, nil
		}),
	).ToActor(actor.Options{
		ID:                 id,
		Context:            ctx,
		Logger:             log,
		Metrics:            m,
		MailboxSize:        cfg.MailboxSize,
		MaxConcurrentTasks: 10_000,
		Codec:              cfg.Codec,
	})
}

func serveMetrics(log *slog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", slog.Any("error", err))
	}
}
