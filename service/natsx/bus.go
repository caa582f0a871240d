package natsx

import (
	"errors"
	"strings"
	"time"

	"VProject/logger"

	"github.com/nats-io/nats.go"
)

// ===== 房间事件总线 =====
//
// 每个服务器房间一个 subject：vc.room.<serverId>。
// 任意节点 NotifyServer 只管 publish；所有节点（包括发布者自己）
// 通过订阅回投给本地订阅了该房间的连接。

const subjectPrefix = "vc.room."

// DeliverFunc 把一条房间事件投给本节点的房间成员。
type DeliverFunc func(serverID string, payload []byte)

// Config 客户端配置
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type Bus struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	deliver DeliverFunc
}

// NewBus 连接 NATS 并订阅全部房间 subject。
func NewBus(cfg Config, deliver DeliverFunc) (*Bus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	if deliver == nil {
		return nil, errors.New("deliver func missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	b := &Bus{nc: nc, deliver: deliver}
	sub, err := nc.Subscribe(subjectPrefix+">", func(m *nats.Msg) {
		serverID := strings.TrimPrefix(m.Subject, subjectPrefix)
		if serverID == "" || serverID == m.Subject {
			return
		}
		b.deliver(serverID, append([]byte(nil), m.Data...))
	})
	if err != nil {
		_ = nc.Drain()
		return nil, err
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
	b.sub = sub

	logger.Infof("[natsx] room bus connected url=%s", cfg.URL)
	return b, nil
}

// PublishServerEvent 往某个服务器房间发事件。
func (b *Bus) PublishServerEvent(serverID string, payload []byte) error {
	if serverID == "" {
		return errors.New("serverID empty")
	}
	return b.nc.Publish(subjectPrefix+serverID, payload)
}

// Close 优雅关闭
func (b *Bus) Close() error {
	if b.sub != nil {
		_ = b.sub.Drain()
	}
	if b.nc != nil {
		return b.nc.Drain()
	}
	return nil
}
