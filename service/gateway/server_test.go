package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"VProject/module/voice/apps"
	"VProject/module/voice/model"
	"VProject/module/voice/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 端到端（不开真 websocket）：连接直接注册进 ConnManager，
// 事件从 WsConn.Send 队列里读出来验证。

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	connMgr := NewConnManager(ManagerConf{SweepEvery: time.Hour}, "gw_test")
	t.Cleanup(connMgr.Close)
	st := store.New(store.NewMemKV())
	srv := NewServer("gw_test", connMgr, st)
	srv.SetApps(apps.NewService(st, srv, nil))
	return srv, st
}

func recvEvent(t *testing.T, c *WsConn) *EventFrame {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev EventFrame
		require.NoError(t, json.Unmarshal(data, &ev))
		return &ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func seedCommunity(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.PutUser(ctx, &model.User{UserID: "U1", Nickname: "admin"}))
	require.NoError(t, st.PutUser(ctx, &model.User{UserID: "U2", Nickname: "newbie"}))
	require.NoError(t, st.PutServer(ctx, &model.Server{ServerID: "S1", OwnerUserID: "U1"}))
	require.NoError(t, st.PutMember(ctx, &model.Member{
		UserID: "U1", ServerID: "S1", PermissionLevel: model.PermServerOwner,
	}))
}

func TestRoomFanoutOnApplicationChange(t *testing.T) {
	srv, st := newTestServer(t)
	seedCommunity(t, st)
	ctx := context.Background()

	// 两条连接订阅 S1 房间，一条订阅别的房间
	sub1, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)
	sub2, err := srv.ConnMgr().Register("c2", nil)
	require.NoError(t, err)
	other, err := srv.ConnMgr().Register("c3", nil)
	require.NoError(t, err)
	srv.Reg().Subscribe("S1", "c1")
	srv.Reg().Subscribe("S1", "c2")
	srv.Reg().Subscribe("S2", "c3")

	require.NoError(t, srv.Apps().Create(ctx, "U2", &apps.ApplicationReq{
		UserID: "U2", ServerID: "S1",
		MemberApplication: &apps.ApplicationBody{Description: "hello"},
	}))

	// 每个 S1 订阅者收到 serverUpdate + serverMemberApplicationsUpdate
	// （fan-out 多 worker，两个事件到达顺序不保证）
	for _, c := range []*WsConn{sub1, sub2} {
		got := map[string]bool{recvEvent(t, c).Op: true, recvEvent(t, c).Op: true}
		assert.True(t, got[apps.EventServerUpdate])
		assert.True(t, got[apps.EventApplicationsUpdate])
	}
	select {
	case <-other.Send:
		t.Fatal("subscriber of another room must not receive the event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConsecutiveSnapshots(t *testing.T) {
	srv, st := newTestServer(t)
	seedCommunity(t, st)
	ctx := context.Background()

	sub, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)
	srv.Reg().Subscribe("S1", "c1")

	require.NoError(t, srv.Apps().Create(ctx, "U2", &apps.ApplicationReq{
		UserID: "U2", ServerID: "S1",
		MemberApplication: &apps.ApplicationBody{Description: "v1"},
	}))
	require.NoError(t, srv.Apps().Update(ctx, "U2", &apps.ApplicationReq{
		UserID: "U2", ServerID: "S1",
		MemberApplication: &apps.ApplicationBody{Description: "v2"},
	}))

	// 连续两轮快照：serverUpdate/applicationsUpdate 各两次。
	// 每份快照都是发送时刻重算的全量列表，必然出现 v1 与 v2 各一次。
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		ev := recvEvent(t, sub)
		if ev.Op != apps.EventApplicationsUpdate {
			continue
		}
		raw, err := json.Marshal(ev.Data)
		require.NoError(t, err)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(raw, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "ma_U2-S1", list[0]["id"])
		seen[list[0]["description"].(string)] = true
	}
	assert.True(t, seen["v1"])
	assert.True(t, seen["v2"])
}

func TestUnknownOpRepliesErrorFrame(t *testing.T) {
	srv, _ := newTestServer(t)
	conn, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)

	// 没注册过的 op 不能让客户端在 seq 上干等
	dispErr := srv.DispatchFrame(&Frame{Op: "bogusOp", Seq: 9}, conn)
	require.Error(t, dispErr)

	ev := recvEvent(t, conn)
	assert.Equal(t, EventError, ev.Op)
	assert.Equal(t, int64(9), ev.Seq)
	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "DATA_INVALID", body.Reason)
	assert.Equal(t, "bogusOp", body.Operation)
}

func TestBuildErrorNormalizesUnknown(t *testing.T) {
	data := BuildError("createApplication", 7, assert.AnError)
	var ev EventFrame
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventError, ev.Op)
	assert.Equal(t, int64(7), ev.Seq)

	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 500, body.Code)
	assert.Equal(t, "EXCEPTION_ERROR", body.Reason)
	assert.Equal(t, "createApplication", body.Operation)
	assert.NotContains(t, body.Message, assert.AnError.Error(), "internal details stay inside")
}

func TestPushConnTargetsSingleConn(t *testing.T) {
	srv, _ := newTestServer(t)
	c1, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)
	c2, err := srv.ConnMgr().Register("c2", nil)
	require.NoError(t, err)

	srv.PushConn("c1", "userUpdate", map[string]any{"userId": "U1"})

	ev := recvEvent(t, c1)
	assert.Equal(t, "userUpdate", ev.Op)
	select {
	case <-c2.Send:
		t.Fatal("push must not leak to other connections")
	case <-time.After(50 * time.Millisecond):
	}
	_ = c2
}
