package config

import (
	"os"
	"time"

	"VProject/logger"
	redis "VProject/service/storage/redis"
	ids "VProject/tools/ids"
)

const NodeTypeVoiceGateway = "voiceGateway" // 网关节点

// XPConfig 进度/升级相关的全部参数。
// requiredXp(level) = ceil(BaseXP * GrowthRate^level)，纯函数。
type XPConfig struct {
	XPPerInterval int64         // 每个奖励周期发放的基础经验
	AwardInterval time.Duration // 奖励周期（经验按整周期补发）
	SweepEvery    time.Duration // 全局扫描周期（远小于 AwardInterval）
	BaseXP        float64       // 升级曲线基数
	GrowthRate    float64       // 升级曲线增长率
}

type AppConfig struct {
	NodeType  string
	NodeID    string
	Port      int
	RedisAddr string
	MongoURI  string
	MongoDB   string
	NatsURL   string
	XP        XPConfig
}

var Global = AppConfig{
	NodeType:  NodeTypeVoiceGateway,
	NodeID:    "vgw_1",
	Port:      8080,
	RedisAddr: "127.0.0.1:6379",
	MongoURI:  "mongodb://localhost:27017",
	MongoDB:   "voiceHub",
	NatsURL:   "nats://127.0.0.1:4222",
	XP: XPConfig{
		XPPerInterval: 10,
		AwardInterval: time.Hour,
		SweepEvery:    60 * time.Second,
		BaseXP:        60,
		GrowthRate:    1.1,
	},
}

func ConfigIds() {
	logger.Infof("配置id生成")
	ids.SetNodeID(100)
}

func GetJwtSecret() []byte {
	if v := os.Getenv("VC_JWT_SECRET"); v != "" {
		return []byte(v)
	}
	return []byte("kH7q2sXv/91bLrPw+Jf83TcyoZd5Nm0Aq6Ee4R8Uj2g=")
}

func ConfigRedis() {
	cfg := redis.Config{
		Addr: Global.RedisAddr, Password: os.Getenv("VC_REDIS_PASSWORD"), DB: 0,
	}
	if err := redis.InitRedis(cfg); err != nil {
		logger.Errorf("[config] init redis: %v", err)
	}
}
