package store

import (
	"context"
	"testing"
	"time"

	"VProject/module/voice/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemKV())

	u, err := st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, u, "missing user should be nil without error")

	require.NoError(t, st.PutUser(ctx, &model.User{UserID: "U1", Nickname: "alice", Level: 3, XP: 42}))
	u, err = st.GetUser(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Nickname)
	assert.Equal(t, int32(3), u.Level)
	assert.Equal(t, int64(42), u.XP)

	// stored record is a copy; mutating the result must not leak back
	u.Nickname = "mallory"
	again, err := st.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Nickname)
}

func TestPutApplicationFillsID(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemKV())

	app := &model.MemberApplication{UserID: "U2", ServerID: "S1", ApplicationStatus: model.ApplicationPending}
	require.NoError(t, st.PutApplication(ctx, app))
	assert.Equal(t, "ma_U2-S1", app.ID)

	got, err := st.GetApplication(ctx, "U2", "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ApplicationPending, got.ApplicationStatus)
}

func TestChannelRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemKV())

	ch, err := st.GetChannel(ctx, "ch_1")
	require.NoError(t, err)
	assert.Nil(t, ch)

	require.NoError(t, st.PutChannel(ctx, &model.Channel{ChannelID: "ch_1", ServerID: "S1", Name: "general"}))
	ch, err = st.GetChannel(ctx, "ch_1")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "S1", ch.ServerID)
	assert.Equal(t, "general", ch.Name)
}

func TestDeleteApplicationIdempotent(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemKV())

	require.NoError(t, st.PutApplication(ctx, &model.MemberApplication{UserID: "U2", ServerID: "S1"}))
	require.NoError(t, st.DeleteApplication(ctx, "U2", "S1"))
	require.NoError(t, st.DeleteApplication(ctx, "U2", "S1"))

	got, err := st.GetApplication(ctx, "U2", "S1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListServerApplicationsOrdered(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemKV())
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	put := func(user string, at time.Time) {
		require.NoError(t, st.PutApplication(ctx, &model.MemberApplication{
			UserID: user, ServerID: "S1",
			ApplicationStatus: model.ApplicationPending,
			CreateTime:        at,
		}))
	}
	put("U3", base.Add(2*time.Minute))
	put("U1", base)
	put("U2", base.Add(time.Minute))
	// 别的服务器的申请不串台
	require.NoError(t, st.PutApplication(ctx, &model.MemberApplication{
		UserID: "U9", ServerID: "S2", ApplicationStatus: model.ApplicationPending, CreateTime: base,
	}))

	list, err := st.ListServerApplications(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ma_U1-S1", list[0].ID)
	assert.Equal(t, "ma_U2-S1", list[1].ID)
	assert.Equal(t, "ma_U3-S1", list[2].ID)
}

func TestWithKeySerializesSameKey(t *testing.T) {
	st := New(NewMemKV())

	const workers = 32
	const rounds = 50
	counter := 0
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < rounds; j++ {
				_ = st.WithKey("mb_U1-S1", func() error {
					counter++ // data race unless WithKey serializes
					return nil
				})
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
	assert.Equal(t, workers*rounds, counter)
}

func TestKeyLockReleasesEntries(t *testing.T) {
	l := newKeyLock()
	l.lock("a")
	l.lock("b")
	l.unlock("b")
	l.unlock("a")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries, "entries should be reclaimed once refs drop to zero")
}
