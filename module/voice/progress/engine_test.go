package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"VProject/module/voice/model"
	"VProject/module/voice/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	mu     sync.Mutex
	pushed []pushedEvent
}

type pushedEvent struct {
	connID  string
	event   string
	payload any
}

func (f *fakePusher) PushConn(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, pushedEvent{connID, event, payload})
}

func (f *fakePusher) drain() []pushedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pushed
	f.pushed = nil
	return out
}

// fakeClock 可手动拨动的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakePusher, *fakeClock) {
	t.Helper()
	st := store.New(store.NewMemKV())
	push := &fakePusher{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := NewEngine(st, push, Config{
		XPPerInterval: 10,
		AwardInterval: time.Hour,
		SweepEvery:    time.Minute,
		Curve:         Curve{BaseXP: 60, GrowthRate: 1.1},
		Clock:         clock.Now,
	})
	return e, st, push, clock
}

func seedProgressUser(t *testing.T, st *store.Store, last time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.PutUser(ctx, &model.User{
		UserID: "U1", VIPTier: 1, CurrentServerID: "S1", LastXPAwardedAt: last,
	}))
	require.NoError(t, st.PutServer(ctx, &model.Server{ServerID: "S1", Wealth: 100}))
	require.NoError(t, st.PutMember(ctx, &model.Member{
		UserID: "U1", ServerID: "S1", PermissionLevel: model.PermMember, Contribution: 5,
	}))
}

func TestTrackFirstTimeSetsBaseline(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	seedProgressUser(t, st, time.Time{})

	e.Track(ctx, "c1", "U1")

	u, err := st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.XP, "first sighting establishes baseline without a grant")
	assert.Equal(t, clock.Now(), u.LastXPAwardedAt)
	assert.Empty(t, push.drain())
}

func TestTrackCatchUpAwardsWholeIntervals(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	last := clock.Now().Add(-(3*time.Hour + 30*time.Minute))
	seedProgressUser(t, st, last)

	e.Track(ctx, "c1", "U1")

	// 3 个整周期 * 10 * 1.2(VIP1) = 36，三个账目同步变动
	u, _ := st.GetUser(ctx, "U1")
	m, _ := st.GetMember(ctx, "U1", "S1")
	sv, _ := st.GetServer(ctx, "S1")
	assert.Equal(t, int64(36), u.XP)
	assert.Equal(t, int64(5+36), m.Contribution)
	assert.Equal(t, int64(100+36), sv.Wealth)
	assert.Equal(t, last.Add(3*time.Hour), u.LastXPAwardedAt, "baseline moves by whole intervals")
	assert.Less(t, u.XP, u.RequiredXP)

	// 定向推送：先 memberUpdate 后 userUpdate，只发 c1
	pushed := push.drain()
	require.Len(t, pushed, 2)
	assert.Equal(t, EventMemberUpdate, pushed[0].event)
	assert.Equal(t, EventUserUpdate, pushed[1].event)
	assert.Equal(t, "c1", pushed[0].connID)
	assert.Equal(t, "c1", pushed[1].connID)
}

func TestSweepOnceAwardsDueConns(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	seedProgressUser(t, st, clock.Now())

	e.Track(ctx, "c1", "U1")
	push.drain()

	// 不到一个周期：无事发生
	clock.Advance(30 * time.Minute)
	e.SweepOnce(ctx)
	u, _ := st.GetUser(ctx, "U1")
	assert.Equal(t, int64(0), u.XP)
	assert.Empty(t, push.drain())

	// 满一个周期：发 10 * 1.2 = 12
	clock.Advance(30 * time.Minute)
	e.SweepOnce(ctx)
	u, _ = st.GetUser(ctx, "U1")
	assert.Equal(t, int64(12), u.XP)
	assert.Len(t, push.drain(), 2)

	// 紧接着再扫不重复发
	e.SweepOnce(ctx)
	u, _ = st.GetUser(ctx, "U1")
	assert.Equal(t, int64(12), u.XP)
}

func TestUntrackStopsAwards(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	seedProgressUser(t, st, clock.Now())

	e.Track(ctx, "c1", "U1")
	push.drain()
	e.Untrack("c1")

	clock.Advance(2 * time.Hour)
	e.SweepOnce(ctx)
	u, _ := st.GetUser(ctx, "U1")
	assert.Equal(t, int64(0), u.XP)
	assert.Empty(t, push.drain())
}

func TestGrantSkippedWhenMemberMissing(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	// 用户声称在 S1，但成员与服务器记录缺失：整次发放跳过
	require.NoError(t, st.PutUser(ctx, &model.User{
		UserID: "U1", CurrentServerID: "S1", LastXPAwardedAt: clock.Now().Add(-2 * time.Hour),
	}))

	e.Track(ctx, "c1", "U1")

	u, _ := st.GetUser(ctx, "U1")
	assert.Equal(t, int64(0), u.XP)
	assert.Equal(t, clock.Now().Add(-2*time.Hour), u.LastXPAwardedAt, "baseline must not move on a failed grant")
	assert.Empty(t, push.drain())
}

func TestGrantSkippedWhenServerMissing(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	// 成员记录在、服务器记录缺失：不许只给贡献记账。
	require.NoError(t, st.PutUser(ctx, &model.User{
		UserID: "U1", VIPTier: 1, CurrentServerID: "S1",
		LastXPAwardedAt: clock.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, st.PutMember(ctx, &model.Member{
		UserID: "U1", ServerID: "S1", PermissionLevel: model.PermMember, Contribution: 5,
	}))

	e.Track(ctx, "c1", "U1")

	u, _ := st.GetUser(ctx, "U1")
	m, _ := st.GetMember(ctx, "U1", "S1")
	assert.Equal(t, int64(0), u.XP)
	assert.Equal(t, clock.Now().Add(-2*time.Hour), u.LastXPAwardedAt)
	assert.Equal(t, int64(5), m.Contribution, "failed grant must not move contribution")
	assert.Empty(t, push.drain())

	// 基准没动，下一次补发会重试：贡献仍然不许涨
	e.Track(ctx, "c2", "U1")
	m, _ = st.GetMember(ctx, "U1", "S1")
	assert.Equal(t, int64(5), m.Contribution, "retried grant must not accumulate contribution")
}

func TestAwardWithoutServerTouchesUserOnly(t *testing.T) {
	e, st, push, clock := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, st.PutUser(ctx, &model.User{
		UserID: "U1", LastXPAwardedAt: clock.Now().Add(-time.Hour),
	}))

	e.Track(ctx, "c1", "U1")

	u, _ := st.GetUser(ctx, "U1")
	assert.Equal(t, int64(10), u.XP)

	pushed := push.drain()
	require.Len(t, pushed, 1, "no member record, so only userUpdate")
	assert.Equal(t, EventUserUpdate, pushed[0].event)
}
