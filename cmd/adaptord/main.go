// Command adaptord wires the framework's packages together into a
// runnable process: load configuration, start the feed sender and its
// scheduled drivers, and serve document content and authorization
// checks over HTTP, shutting down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/common"
	"github.com/googlegsa/library/config"
	"github.com/googlegsa/library/feed"
	"github.com/googlegsa/library/groups"
	eveserver "github.com/googlegsa/library/http"
	"github.com/googlegsa/library/journal"
	"github.com/googlegsa/library/lifecycle"
	"github.com/googlegsa/library/push"
	"github.com/googlegsa/library/serve"
	"github.com/googlegsa/library/version"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "adaptor.properties", "path to the properties file")
	docRoot := flag.String("docroot", ".", "directory the reference adaptor serves content from")
	flag.Parse()

	logger := common.ServiceLogger("adaptord")

	cfg, err := config.FromFile(*configPath)
	if err != nil {
		logger.WithError(err).Warn("adaptord: no config file, using defaults")
		cfg = config.New(nil)
	}

	serverCfg := config.LoadServerConfig(cfg)
	feedCfg := config.LoadFeedConfig(cfg)
	adaptorCfg := config.LoadAdaptorConfig(cfg)
	transformCfg := config.LoadTransformConfig(cfg)

	a := newFSAdaptor(*docRoot)

	j := journal.New(feedCfg.Name, prometheus.NewRegistry())

	feedURL := fmt.Sprintf("http://%s/xmlfeed", serverCfg.GSAHostname)
	transport := feed.NewTransport(feedURL, "datasource", 30*time.Second)

	sender := push.NewSender(feedCfg.Name, feedURL, feedCfg.MaxUrls, transport, j)
	sender.MarkAllDocsAsPublic = adaptorCfg.MarkAllDocsAsPublic

	fullDriver := push.NewFullPushDriver(sender, j)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := lifecycle.NewShutdownWaiter()

	if adaptorCfg.FullListingSchedule != "" {
		schedule, err := push.ParseCronSchedule(adaptorCfg.FullListingSchedule)
		if err != nil {
			logger.WithError(err).Error("adaptord: invalid fullListingSchedule, full push disabled")
		} else {
			cronDriver := push.NewCronDriver(fullDriver, schedule)
			go cronDriver.Run(ctx, a)
		}
	}

	if adaptorCfg.IncrementalPollPeriodSecs > 0 {
		incrementalDriver := push.NewIncrementalDriver(sender, j, time.Duration(adaptorCfg.IncrementalPollPeriodSecs)*time.Second)
		go incrementalDriver.Run(ctx, a)
	}

	if adaptorCfg.PushDocIdsOnStartup {
		go func() {
			if err := fullDriver.Run(ctx, a); err != nil {
				logger.WithError(err).Warn("adaptord: startup full push failed")
			}
		}()
	}

	applianceVersion := cfg.GetString("gsa.version", "7.4")
	groupsDriver, err := groups.NewDriver(feedCfg.Name, feedCfg.MaxUrls, transport, j, applianceVersion)
	if err != nil {
		logger.WithError(err).Error("adaptord: group driver disabled")
	} else if adaptorCfg.PushDocIdsOnStartup {
		go func() {
			if err := groupsDriver.Run(ctx, a, groups.ModeFull); err != nil {
				logger.WithError(err).Warn("adaptord: startup group push failed")
			}
		}()
	}

	trust := serve.NewTrustList(nil, serverCfg.FullAccessHosts)
	sessions := serve.NewSessionStore(30 * time.Minute)
	transforms := serve.NewTransformPipeline(transformCfg.MaxDocumentBytes, transformCfg.Required)
	handler := serve.NewHandler(a, trust, sessions, transforms)

	caps := &capabilities{cfg: cfg, fullDriver: fullDriver, adaptor: a, handler: handler}
	a.SetCapabilities(caps)

	echoServerCfg := eveserver.DefaultServerConfig()
	echoServerCfg.Port = eveserver.GetPortInt(os.Getenv("ADAPTORD_PORT"), serverCfg.Port)
	e := eveserver.NewEchoServer(echoServerCfg)
	e.Use(eveserver.SecurityHeadersMiddleware())
	e.HTTPErrorHandler = eveserver.CustomHTTPErrorHandler
	e.GET("/health", eveserver.HealthCheckHandlerWithDetails(feedCfg.Name, version.FrameworkVersion(), func() map[string]interface{} {
		return map[string]interface{}{
			"docroot":   *docRoot,
			"feedUrl":   feedURL,
			"groupFeed": groupsDriver != nil,
		}
	}))
	handler.Register(e)

	serverErrs := make(chan error, 1)
	go func() {
		serverErrs <- eveserver.StartServer(e, echoServerCfg)
	}()

	logger.WithField("port", echoServerCfg.Port).Info("adaptord: serving")
	if groupsDriver != nil {
		logger.Info("adaptord: group feed driver ready")
	}

	select {
	case <-ctx.Done():
		logger.Info("adaptord: shutdown signal received")
	case err := <-serverErrs:
		if err != nil {
			logger.WithError(err).Error("adaptord: server stopped")
		}
	}

	if !shutdown.Shutdown(10 * time.Second) {
		logger.Warn("adaptord: timed out waiting for in-flight work to drain")
	}
	if err := eveserver.GracefulShutdown(e, 10*time.Second); err != nil {
		logger.WithError(err).Error("adaptord: error during HTTP shutdown")
	}
}

// capabilities implements adaptor.Capabilities, the narrow object handed
// to an adaptor at initialization so it can trigger an out-of-schedule
// push or register an authentication delegate without holding a
// reference back into the framework's internals.
type capabilities struct {
	cfg        *config.Config
	fullDriver *push.FullPushDriver
	adaptor    adaptor.Adaptor
	handler    *serve.Handler
}

func (c *capabilities) PushDocIdsNow(ctx context.Context) error {
	return c.fullDriver.Run(ctx, c.adaptor)
}

func (c *capabilities) RegisterAuthnHandler(handler adaptor.AuthnHandler) {
	c.handler.SetAuthnHandler(handler)
}

func (c *capabilities) Config() *config.Config {
	return c.cfg
}
