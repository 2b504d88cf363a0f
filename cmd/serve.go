package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"smwall/ingest"
	"smwall/models"
	"smwall/scheduler"
	"smwall/server"
)

const (
	shutdownTimeout = 10 * time.Second
	warmAvatarLimit = time.Minute
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the wall feed",
		Description: `Starts the HTTP server and the YouTube polling loops.

Every enabled strategy polls on its own interval. New videos are enriched
with their channel avatar and pushed to every subscriber connected to
/wall/feed/sse or, when --ws-listen is set, /wall/feed/ws.`,
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address of the HTTP server, overrides server.listen",
				EnvVars: []string{"SMWALL_LISTEN"},
			},
			&cli.StringFlag{
				Name:    "ws-listen",
				Usage:   "Address of the WebSocket server, overrides server.ws_listen (empty disables it)",
				EnvVars: []string{"SMWALL_WS_LISTEN"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("listen") {
				cfg.Server.Listen = ctx.String("listen")
			}
			if ctx.IsSet("ws-listen") {
				cfg.Server.WsListen = ctx.String("ws-listen")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			p := newPipeline(cfg)
			bc := server.NewBroadcaster()
			registerCacheMetrics(p)

			jobs := []scheduler.Job{}
			for _, strategy := range cfg.EnabledStrategies() {
				cycle, err := p.cycle(strategy, bc)
				if err != nil {
					return err
				}
				jobs = append(jobs, scheduler.Job{
					Name:     strategy.String(),
					Interval: cfg.Strategy(strategy).Interval(),
					Run:      cycle.Run,
				})
			}

			app := server.Server(&server.ServerConfig{
				AllowOrigins: cfg.Server.AllowOrigins,
				Broadcaster:  bc,
				Status: func() models.WallStatus {
					return models.WallStatus{
						Subscribers:       bc.Count(),
						SeenItems:         p.seen.Len(),
						CachedAvatars:     p.profiles.Len(),
						EnabledStrategies: cfg.EnabledStrategies(),
					}
				},
			})

			var wsServer *http.Server
			if cfg.Server.WsListen != "" {
				wsServer = &http.Server{
					Addr:              cfg.Server.WsListen,
					Handler:           server.WebSocketHandler(bc, cfg.Server.AllowOrigins),
					ReadHeaderTimeout: 10 * time.Second,
				}
			}

			// Graceful shutdown
			sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(sigCtx)

			g.Go(func() error {
				log.WithField("addr", cfg.Server.Listen).Info("Starting server...")
				if err := app.Listen(cfg.Server.Listen); err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})

			if wsServer != nil {
				g.Go(func() error {
					log.WithField("addr", wsServer.Addr).Info("Starting websocket server...")
					if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("websocket server: %w", err)
					}
					return nil
				})
			}

			if p.needsChannelAvatar() {
				go func() {
					if err := warmChannelAvatar(gctx, p); err != nil {
						log.WithField("channel_id", cfg.ChannelId).Warnf("Could not warm channel avatar: %v", err)
					}
				}()
			}

			g.Go(func() error {
				return scheduler.New(scheduler.Config{
					GracePeriod: cfg.GracePeriod(),
					RunOnStart:  cfg.Scheduler.RunOnStart,
				}, jobs...).Run(gctx)
			})

			g.Go(func() error {
				<-gctx.Done()
				log.Info("Gracefully shutting down...")
				bc.Shutdown()

				if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
				if wsServer != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					if err := wsServer.Shutdown(shutdownCtx); err != nil {
						log.Errorf("Error shutting down websocket server: %v", err)
					}
				}
				return nil
			})

			err = g.Wait()
			log.Info("Done!")
			return err
		},
	}
}

func registerCacheMetrics(p *pipeline) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "smwall_seen_items",
		Help: "The number of video ids seen since start",
	}, func() float64 { return float64(p.seen.Len()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "smwall_cached_avatars",
		Help: "The number of channel avatars in the profile cache",
	}, func() float64 { return float64(p.profiles.Len()) })
}

func warmChannelAvatar(ctx context.Context, p *pipeline) error {
	return ingest.WarmAvatar(ctx, p.resolver, p.cfg.ChannelId, warmAvatarLimit)
}
