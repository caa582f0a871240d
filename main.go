package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"VProject/global/config"
	"VProject/logger"
	"VProject/module/voice/apps"
	"VProject/module/voice/model"
	"VProject/module/voice/progress"
	"VProject/module/voice/store"
	"VProject/service/gateway"
	"VProject/service/gateway/handlers"
	"VProject/service/mgo"
	"VProject/service/natsx"
	"VProject/service/storage"
	"VProject/tools/ids"
	"VProject/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	config.ConfigIds()
	config.ConfigRedis()

	// ---- 存储 ----
	ctx := context.Background()
	mgo.StartAsync(ctx, &mgo.Config{URI: config.Global.MongoURI, Database: config.Global.MongoDB})
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgo.WaitReady(waitCtx); err != nil {
		logger.Errorf("[main] mongo not ready: %v", err)
		return
	}
	st := store.New(store.NewMongoKV(mgo.GetDB()))

	// ---- 网关 ----
	connMgr := gateway.NewConnManager(gateway.ManagerConf{}, config.Global.NodeID)
	srv := gateway.NewServer(config.Global.NodeID, connMgr, st)

	appsSvc := apps.NewService(st, srv, nil)
	srv.SetApps(appsSvc)

	engine := progress.NewEngine(st, srv, progress.Config{
		XPPerInterval: config.Global.XP.XPPerInterval,
		AwardInterval: config.Global.XP.AwardInterval,
		SweepEvery:    config.Global.XP.SweepEvery,
		Curve:         progress.Curve{BaseXP: config.Global.XP.BaseXP, GrowthRate: config.Global.XP.GrowthRate},
	})
	srv.SetEngine(engine)
	engine.Start()
	defer engine.Stop()

	// ---- 跨节点房间总线（连不上就退化为单节点本地投递）----
	bus, err := natsx.NewBus(natsx.Config{
		URL:  config.Global.NatsURL,
		Name: config.Global.NodeID,
	}, srv.DeliverLocal)
	if err != nil {
		logger.Warnf("[main] nats unavailable, local fan-out only: %v", err)
	} else {
		srv.SetBus(bus)
		defer bus.Close()
	}

	// ---- 处理器注册 ----
	for _, h := range []gateway.Handler{
		handlers.NewAuthHandler(),
		handlers.NewLogoutHandler(),
		handlers.NewPingHandler(),
		handlers.NewSubscribeHandler(),
		handlers.NewUnsubscribeHandler(),
		handlers.NewJoinChannelHandler(),
		handlers.NewLeaveChannelHandler(),
		handlers.NewCreateApplicationHandler(),
		handlers.NewUpdateApplicationHandler(),
		handlers.NewDeleteApplicationHandler(),
		handlers.NewApproveApplicationHandler(),
		handlers.NewRejectApplicationHandler(),
	} {
		srv.Disp().Register(h)
	}

	addr := fmt.Sprintf(":%d", config.Global.Port)
	if err := srv.Run(addr, registerAPI(st)); err != nil {
		logger.Errorf("[main] server exit: %v", err)
	}
}

// registerAPI 网关附带的 HTTP 面：登录签发令牌、在线查询、建频道。
func registerAPI(st *store.Store) func(*gin.Engine) {
	return func(r *gin.Engine) {
		r.POST("/api/login", func(c *gin.Context) {
			var body struct {
				UserID string `json:"userId"`
			}
			if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"code": 401, "message": "userId required"})
				return
			}
			opts := security.DefaultOptions(config.GetJwtSecret())
			token, expireAt, err := storage.SessionCreate(opts, body.UserID)
			if err != nil {
				logger.Errorf("[api] login user=%s err=%v", body.UserID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "issue token failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"code":     0,
				"token":    token,
				"expireAt": expireAt.UnixMilli(),
			})
		})

		r.GET("/api/presence/:userId", func(c *gin.Context) {
			gatewayID, online, err := storage.PresenceLookup(c.Param("userId"))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "presence lookup failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"code": 0, "online": online, "gatewayId": gatewayID})
		})

		r.POST("/api/channels", func(c *gin.Context) {
			var body struct {
				ServerID string `json:"serverId"`
				Name     string `json:"name"`
				Order    int32  `json:"order"`
			}
			if err := c.ShouldBindJSON(&body); err != nil || body.ServerID == "" || body.Name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"code": 401, "message": "serverId/name required"})
				return
			}
			now := time.Now()
			ch := &model.Channel{
				ChannelID:  "ch_" + ids.GenerateString(),
				ServerID:   body.ServerID,
				Name:       body.Name,
				Order:      body.Order,
				CreateTime: now,
				UpdateTime: now,
			}
			if err := st.PutChannel(c.Request.Context(), ch); err != nil {
				logger.Errorf("[api] create channel server=%s err=%v", body.ServerID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "create channel failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"code": 0, "channel": ch})
		})
	}
}
