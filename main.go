package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"RProject/global"
	"RProject/logger"
	chathttp "RProject/module/chat"
	"RProject/module/chat/message"
	"RProject/module/presence"
	chatws "RProject/service/chat"
	"RProject/service/mgo"
	"RProject/service/natsx"
	"RProject/service/storage"
	redisstore "RProject/service/storage/redis"
	"RProject/tools/ids"
	"RProject/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := global.Load()
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// mongo comes up in the background; boot blocks on first ready
	mgo.StartAsync(ctx, &cfg.Mongo)
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgo.WaitReady(waitCtx, mgo.Manager()); err != nil {
		logger.Errorf("[boot] mongo not ready: %v (last: %v)", err, mgo.Err())
		return
	}
	db, tx := mgo.GetDB(), mgo.GetTx()

	store := message.NewMongoStore(db, tx)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Errorf("[boot] ensure indexes: %v", err)
		return
	}
	members := message.NewMongoMembership(db)

	// redis history cache is optional
	var history *storage.HistoryCache
	if cfg.Redis.Addr != "" {
		if err := redisstore.InitRedis(cfg.Redis); err != nil {
			logger.Warnf("[boot] redis unavailable, history cache off: %v", err)
		} else {
			history = storage.NewHistoryCache(redisstore.GetClient(), cfg.HistoryWindow)
		}
	}

	// event outbox is optional
	var outbox *natsx.Producer
	if cfg.Nats.URL != "" {
		p, err := natsx.NewProducer(cfg.Nats)
		if err != nil {
			logger.Warnf("[boot] nats unavailable, outbox off: %v", err)
		} else {
			outbox = p
			defer outbox.Close()
		}
	}

	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))

	st := presence.NewState()
	ws := chatws.NewServer(st, members, jwtOpts, outbox)
	defer ws.Close()

	sweeper := presence.NewSweeper(presence.SweeperConf{
		Interval: cfg.PresenceSweepInterval,
		TTL:      cfg.PresenceTTL,
	}, st, ws.Emitter())
	sweeper.Start()
	defer sweeper.Stop()

	msgs := message.NewService(store, members, ws.Gateway(), history, ws.Emitter(), outbox, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	chathttp.NewHandler(msgs, jwtOpts).Register(r, ws.HandleWS)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Infof("[boot] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("[boot] shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
}
