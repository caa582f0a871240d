package progress

import (
	"context"
	"sync"
	"time"

	"VProject/logger"
	"VProject/module/voice/model"
	"VProject/module/voice/store"
	"VProject/tools/errs"
	"VProject/tools/safe"
)

// 定向推送事件名：只发给产生进度的那条连接，从不进房间广播。
const (
	EventMemberUpdate = "memberUpdate"
	EventUserUpdate   = "userUpdate"
)

// Pusher 把事件推给指定连接。
type Pusher interface {
	PushConn(connID, event string, payload any)
}

// ===== 配置 =====

type Config struct {
	XPPerInterval int64            // 每个奖励周期的基础经验
	AwardInterval time.Duration    // 奖励周期（如 1h）
	SweepEvery    time.Duration    // 扫描周期（如 60s），与奖励周期解耦
	Curve         Curve            // 升级曲线
	Clock         func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *Config) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.AwardInterval <= 0 {
		c.AwardInterval = time.Hour
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 60 * time.Second
	}
	if c.XPPerInterval <= 0 {
		c.XPPerInterval = 10
	}
	if c.Curve.BaseXP <= 0 {
		c.Curve = Curve{BaseXP: 60, GrowthRate: 1.1}
	}
}

// ===== 引擎 =====

type tick struct {
	userID     string
	lastTickAt time.Time
}

// Engine 进度引擎。
// 计时表是进程内缓存，进程重启后由连接重新注册重建；
// 补发依据的是落库的 lastXpAwardedAt，时间不会因此丢失。
type Engine struct {
	mu    sync.Mutex
	ticks map[string]*tick // connID -> 计时

	st   *store.Store
	push Pusher
	conf Config

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewEngine(st *store.Store, push Pusher, conf Config) *Engine {
	conf.norm()
	return &Engine{
		ticks:  make(map[string]*tick),
		st:     st,
		push:   push,
		conf:   conf,
		stopCh: make(chan struct{}),
	}
}

// Start 启动全局扫描协程。
func (e *Engine) Start() {
	safe.SafeGo(e.sweeper)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Track 连接授权后注册进计时表，并立即做一次断线补发。
func (e *Engine) Track(ctx context.Context, connID, userID string) {
	newLast, err := e.award(ctx, connID, userID)
	if err != nil {
		logger.Errorf("[progress] catch-up conn=%s user=%s err=%v", connID, userID, err)
		newLast = e.conf.Clock()
	}
	e.mu.Lock()
	e.ticks[connID] = &tick{userID: userID, lastTickAt: newLast}
	e.mu.Unlock()
}

// Untrack 连接关闭时移除计时。进行中的补发不受影响，照常落库。
func (e *Engine) Untrack(connID string) {
	e.mu.Lock()
	delete(e.ticks, connID)
	e.mu.Unlock()
}

func (e *Engine) sweeper() {
	t := time.NewTicker(e.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-t.C:
			e.SweepOnce(context.Background())
		}
	}
}

// SweepOnce 扫一遍所有在线连接。逐连接推进，单个连接出错只记日志，
// 不中断其余连接的发放。
func (e *Engine) SweepOnce(ctx context.Context) {
	now := e.conf.Clock()

	e.mu.Lock()
	due := make(map[string]string, len(e.ticks))
	for connID, tk := range e.ticks {
		if now.Sub(tk.lastTickAt) >= e.conf.AwardInterval {
			due[connID] = tk.userID
		}
	}
	e.mu.Unlock()

	for connID, userID := range due {
		newLast, err := e.award(ctx, connID, userID)
		if err != nil {
			logger.Errorf("[progress] sweep grant conn=%s user=%s err=%v", connID, userID, err)
			continue
		}
		e.mu.Lock()
		if tk, ok := e.ticks[connID]; ok && tk.userID == userID {
			tk.lastTickAt = newLast
		}
		e.mu.Unlock()
	}
}

// award 对单个用户做一次补发，返回前移后的发放基准时间。
// 用户经验、成员贡献、服务器财富要么一起落库，要么整次跳过；
// lastXpAwardedAt 只在写入全部成功后才前移。
func (e *Engine) award(ctx context.Context, connID, userID string) (time.Time, error) {
	now := e.conf.Clock()
	var newLast time.Time
	var grantedUser *model.User
	var grantedMember *model.Member

	err := e.st.WithKey(userID, func() error {
		user, err := e.st.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return errs.New("user not found", "user_id", userID)
		}

		if user.LastXPAwardedAt.IsZero() {
			// 首次上线：建立基准，不补发。
			user.LastXPAwardedAt = now
			user.LastActiveAt = now
			newLast = now
			return e.st.PutUser(ctx, user)
		}

		intervals, last := ComputeCatchUp(now, user.LastXPAwardedAt, e.conf.AwardInterval)
		newLast = user.LastXPAwardedAt
		if intervals == 0 {
			return nil
		}
		amount := GrantAmount(e.conf.XPPerInterval, intervals, user.VIPTier)

		// 贡献/财富与经验同步变动。三方实体先全部取齐校验，
		// 任一缺失整次跳过、一字不写；之后才开始落库，用户记录最后写。
		if user.CurrentServerID != "" {
			serverID := user.CurrentServerID
			memberKey := model.MemberID(userID, serverID)
			err := e.st.WithKey(memberKey, func() error {
				member, err := e.st.GetMember(ctx, userID, serverID)
				if err != nil {
					return err
				}
				if member == nil {
					return errs.New("member not found", "id", memberKey)
				}
				return e.st.WithKey(serverID, func() error {
					server, err := e.st.GetServer(ctx, serverID)
					if err != nil {
						return err
					}
					if server == nil {
						return errs.New("server not found", "server_id", serverID)
					}
					member.Contribution += amount
					member.UpdateTime = now
					if err := e.st.PutMember(ctx, member); err != nil {
						return err
					}
					server.Wealth += amount
					server.UpdateTime = now
					if err := e.st.PutServer(ctx, server); err != nil {
						return err
					}
					grantedMember = member
					return nil
				})
			})
			if err != nil {
				return err
			}
		}

		user.XP += amount
		Normalize(user, e.conf.Curve)
		user.LastXPAwardedAt = last
		user.LastActiveAt = now
		user.UpdateTime = now
		if err := e.st.PutUser(ctx, user); err != nil {
			return err
		}
		newLast = last
		grantedUser = user
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	// 定向推送，只发给这条连接。
	if e.push != nil && grantedUser != nil {
		if grantedMember != nil {
			e.push.PushConn(connID, EventMemberUpdate, grantedMember)
		}
		e.push.PushConn(connID, EventUserUpdate, grantedUser)
	}
	return newLast, nil
}
