package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"m7s.live/framering/pkg"
	"m7s.live/framering/pkg/codec"
	"m7s.live/framering/pkg/config"
	"m7s.live/framering/pkg/sink"
)

func main() {
	conf := flag.String("c", "config.yaml", "config file")
	flag.Parse()
	var demo config.Demo
	if err := config.LoadFile(*conf, &demo, "FRAMERING"); err != nil {
		slog.Error("load config", "file", *conf, "error", err)
		os.Exit(1)
	}
	handler, err := pkg.NewLogHandler(&demo.Log)
	if err != nil {
		slog.Error("create log handler", "error", err)
		os.Exit(1)
	}
	if demo.Log.JSON != "" {
		file, err := os.OpenFile(demo.Log.JSON, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			slog.Error("open json log", "file", demo.Log.JSON, "error", err)
			os.Exit(1)
		}
		defer file.Close()
		handler.Add(pkg.NewJSONLogHandler(file, &slog.HandlerOptions{Level: pkg.ParseLevel(demo.Log.Level)}, nil))
	}
	slog.SetDefault(slog.New(handler))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = run(ctx, &demo); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("exit", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, demo *config.Demo) (err error) {
	collector := pkg.NewRingCollector("framering")
	collector.Host = true
	prometheus.MustRegister(collector)
	// 每个输出独占一个环，源把每一帧写入所有的环
	var rings []*pkg.RingBuffer
	newRing := func(sinkName string) *pkg.RingBuffer {
		conf := demo.Ring
		if sinkName != "" {
			conf.Name += "-" + sinkName
		}
		rb := pkg.NewRingBufferWithConfig(&conf)
		if !collector.Rings.AddUnique(rb) {
			rb.Warn("ring name already registered")
		}
		rings = append(rings, rb)
		return rb
	}
	defer func() {
		for _, rb := range rings {
			stats := rb.Stats()
			rb.Info("ring stats", "put", stats.Put, "drop", stats.Drop, "evict", stats.Evict, "corrupt", stats.Corrupt, "check", rb.Check())
			rb.Close()
			collector.Rings.RemoveByKey(rb.GetKey())
		}
	}()

	var sinks []func(context.Context) error
	if demo.RTP.Enable {
		var conn net.Conn
		if conn, err = net.Dial("udp", demo.RTP.Addr); err != nil {
			return
		}
		defer conn.Close()
		var rtp *sink.RTP
		fourCC, _ := codec.ParseFourCC(demo.Source.Codec)
		if rtp, err = sink.NewRTP(newRing("rtp"), fourCC, conn, &demo.RTP); err != nil {
			return
		}
		sinks = append(sinks, rtp.Run)
	}
	if demo.Record.Enable {
		var file *os.File
		if file, err = os.Create(demo.Record.FilePath); err != nil {
			return
		}
		defer file.Close()
		recorder := sink.NewRecorder(newRing("record"), file, &demo.Record)
		sinks = append(sinks, recorder.Run)
	}
	if len(rings) == 0 {
		newRing("")
	}
	source, err := pkg.NewFakeSource(rings[0], &demo.Source)
	if err != nil {
		return
	}
	source.Tee(rings[1:]...)
	g, ctx := errgroup.WithContext(ctx)
	for _, start := range sinks {
		g.Go(func() error { return start(ctx) })
	}
	if demo.HTTP.ListenAddr != "" {
		demo.HTTP.AddMiddleware(func(path string, next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				slog.Debug("http request", "path", path, "remote", r.RemoteAddr)
				next.ServeHTTP(w, r)
			})
		})
		demo.HTTP.Handle("/metrics", promhttp.Handler())
		g.Go(func() error { return demo.HTTP.Serve(ctx, slog.Default()) })
	}
	g.Go(func() error {
		if err := source.Run(ctx); err != nil {
			return err
		}
		// 到达运行时长后结束所有输出
		return context.Canceled
	})
	return g.Wait()
}
