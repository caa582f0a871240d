package store

import (
	"context"
	"sort"

	"VProject/module/voice/model"
	"VProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
)

// 集合名与模型 GetTableName 保持一致。
const (
	CollUsers        = "users"
	CollServers      = "servers"
	CollChannels     = "channels"
	CollMembers      = "members"
	CollApplications = "member_applications"
)

// Store 持久层门面：类型化读写 + 按实体 key 的互斥。
// 进程内缓存（连接表、计时表）之外，这里是唯一的事实来源。
type Store struct {
	kv    KV
	locks *keyLock
}

func New(kv KV) *Store {
	return &Store{kv: kv, locks: newKeyLock()}
}

// WithKey 在持有 key 锁的情况下执行 fn；同一实体 key 上的
// 读-改-写必须走这里。不同 key 互不阻塞。
func (s *Store) WithKey(key string, fn func() error) error {
	s.locks.lock(key)
	defer s.locks.unlock(key)
	return fn()
}

// ===== users =====

func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	ok, err := s.kv.Get(ctx, CollUsers, userID, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (s *Store) PutUser(ctx context.Context, u *model.User) error {
	return s.kv.Set(ctx, CollUsers, u.UserID, u)
}

// ===== servers =====

func (s *Store) GetServer(ctx context.Context, serverID string) (*model.Server, error) {
	var sv model.Server
	ok, err := s.kv.Get(ctx, CollServers, serverID, &sv)
	if err != nil || !ok {
		return nil, err
	}
	return &sv, nil
}

func (s *Store) PutServer(ctx context.Context, sv *model.Server) error {
	return s.kv.Set(ctx, CollServers, sv.ServerID, sv)
}

// ===== channels =====

func (s *Store) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	var ch model.Channel
	ok, err := s.kv.Get(ctx, CollChannels, channelID, &ch)
	if err != nil || !ok {
		return nil, err
	}
	return &ch, nil
}

func (s *Store) PutChannel(ctx context.Context, ch *model.Channel) error {
	return s.kv.Set(ctx, CollChannels, ch.ChannelID, ch)
}

// ===== members =====

func (s *Store) GetMember(ctx context.Context, userID, serverID string) (*model.Member, error) {
	var m model.Member
	ok, err := s.kv.Get(ctx, CollMembers, model.MemberID(userID, serverID), &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

func (s *Store) PutMember(ctx context.Context, m *model.Member) error {
	if m.ID == "" {
		m.ID = model.MemberID(m.UserID, m.ServerID)
	}
	return s.kv.Set(ctx, CollMembers, m.ID, m)
}

// ===== member applications =====

func (s *Store) GetApplication(ctx context.Context, userID, serverID string) (*model.MemberApplication, error) {
	var a model.MemberApplication
	ok, err := s.kv.Get(ctx, CollApplications, model.ApplicationID(userID, serverID), &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (s *Store) PutApplication(ctx context.Context, a *model.MemberApplication) error {
	if a.ID == "" {
		a.ID = model.ApplicationID(a.UserID, a.ServerID)
	}
	return s.kv.Set(ctx, CollApplications, a.ID, a)
}

func (s *Store) DeleteApplication(ctx context.Context, userID, serverID string) error {
	return s.kv.Delete(ctx, CollApplications, model.ApplicationID(userID, serverID))
}

// ListServerApplications 重算某服务器的申请全量列表。
// 按创建时间排序，推送出去的快照因此是确定的。
func (s *Store) ListServerApplications(ctx context.Context, serverID string) ([]*model.MemberApplication, error) {
	raws, err := s.kv.Find(ctx, CollApplications, "server_id", serverID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.MemberApplication, 0, len(raws))
	for _, raw := range raws {
		var a model.MemberApplication
		if err := bson.Unmarshal(raw, &a); err != nil {
			return nil, errs.WrapMsg(err, "decode application", "server_id", serverID)
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out, nil
}
