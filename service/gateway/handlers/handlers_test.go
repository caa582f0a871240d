package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"VProject/module/voice/apps"
	"VProject/module/voice/model"
	"VProject/module/voice/store"
	"VProject/service/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerEnv(t *testing.T) (*gateway.Server, *store.Store) {
	t.Helper()
	connMgr := gateway.NewConnManager(gateway.ManagerConf{SweepEvery: time.Hour}, "gw_test")
	t.Cleanup(connMgr.Close)
	st := store.New(store.NewMemKV())
	srv := gateway.NewServer("gw_test", connMgr, st)
	srv.SetApps(apps.NewService(st, srv, nil))
	for _, h := range []gateway.Handler{
		NewCreateApplicationHandler(),
		NewUpdateApplicationHandler(),
		NewJoinChannelHandler(),
		NewLeaveChannelHandler(),
	} {
		srv.Disp().Register(h)
	}
	return srv, st
}

func recvFrame(t *testing.T, c *gateway.WsConn) *gateway.EventFrame {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev gateway.EventFrame
		require.NoError(t, json.Unmarshal(data, &ev))
		return &ev
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func errorBody(t *testing.T, ev *gateway.EventFrame) gateway.ErrorBody {
	t.Helper()
	require.Equal(t, gateway.EventError, ev.Op)
	raw, err := json.Marshal(ev.Data)
	require.NoError(t, err)
	var body gateway.ErrorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestMalformedRequestBeforeIdentity(t *testing.T) {
	srv, _ := newHandlerEnv(t)
	conn, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)

	// 未认证连接发坏载荷：校验阶梯里结构检查在身份之前，报 DATA_INVALID
	_ = srv.DispatchFrame(&gateway.Frame{Op: gateway.OpCreateApplication, Seq: 1}, conn)
	ev := recvFrame(t, conn)
	assert.Equal(t, int64(1), ev.Seq)
	body := errorBody(t, ev)
	assert.Equal(t, "DATA_INVALID", body.Reason)

	// 形状不完整（缺 memberApplication）同样是 DATA_INVALID
	_ = srv.DispatchFrame(&gateway.Frame{
		Op:   gateway.OpCreateApplication,
		Seq:  2,
		Data: map[string]any{"userId": "U2", "serverId": "S1"},
	}, conn)
	body = errorBody(t, recvFrame(t, conn))
	assert.Equal(t, "DATA_INVALID", body.Reason)
}

func TestWellFormedUnauthenticatedGetsAuthInvalid(t *testing.T) {
	srv, _ := newHandlerEnv(t)
	conn, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)

	// 载荷完整但连接没绑定：这才轮到 AUTH_INVALID
	_ = srv.DispatchFrame(&gateway.Frame{
		Op:  gateway.OpCreateApplication,
		Seq: 3,
		Data: map[string]any{
			"userId": "U2", "serverId": "S1",
			"memberApplication": map[string]any{"description": "hello"},
		},
	}, conn)
	body := errorBody(t, recvFrame(t, conn))
	assert.Equal(t, "AUTH_INVALID", body.Reason)
	assert.Equal(t, 401, body.Code)
	assert.Equal(t, "createApplication", body.Operation)
}

func TestJoinAndLeaveChannel(t *testing.T) {
	srv, st := newHandlerEnv(t)
	ctx := context.Background()
	require.NoError(t, st.PutUser(ctx, &model.User{UserID: "U1"}))
	require.NoError(t, st.PutChannel(ctx, &model.Channel{ChannelID: "ch_1", ServerID: "S1", Name: "general"}))

	conn, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)
	require.True(t, srv.ConnMgr().Bind("c1", "U1"))

	_ = srv.DispatchFrame(&gateway.Frame{
		Op: gateway.OpJoinChannel, Data: map[string]any{"channelId": "ch_1"},
	}, conn)
	ev := recvFrame(t, conn)
	assert.Equal(t, "userUpdate", ev.Op)

	u, err := st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "S1", u.CurrentServerID)
	assert.Equal(t, "ch_1", u.CurrentChannelID)

	_ = srv.DispatchFrame(&gateway.Frame{Op: gateway.OpLeaveChannel}, conn)
	_ = recvFrame(t, conn)
	u, err = st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, u.CurrentServerID)
	assert.Empty(t, u.CurrentChannelID)
}

func TestJoinUnknownChannel(t *testing.T) {
	srv, st := newHandlerEnv(t)
	require.NoError(t, st.PutUser(context.Background(), &model.User{UserID: "U1"}))

	conn, err := srv.ConnMgr().Register("c1", nil)
	require.NoError(t, err)
	require.True(t, srv.ConnMgr().Bind("c1", "U1"))

	_ = srv.DispatchFrame(&gateway.Frame{
		Op: gateway.OpJoinChannel, Data: map[string]any{"channelId": "ch_missing"},
	}, conn)
	body := errorBody(t, recvFrame(t, conn))
	assert.Equal(t, "DATA_INVALID", body.Reason)
}
