package apps

import (
	"context"
	"time"

	"VProject/logger"
	"VProject/module/voice/model"
	"VProject/module/voice/store"
	"VProject/tools/errs"
)

// 推送事件名（兼容面，见 frames 层）。
const (
	EventServerUpdate       = "serverUpdate"
	EventApplicationsUpdate = "serverMemberApplicationsUpdate"
)

const maxDescriptionLen = 200

// Notifier 把变更后的快照推给订阅了该服务器房间的所有连接。
type Notifier interface {
	NotifyServer(serverID, event string, payload any)
}

// Service 申请生命周期 + 权限校验。
// 校验顺序固定：载荷结构 -> 载荷形状 -> 身份（调用层）-> 实体加载
// -> 鉴权 -> 变更 -> 推送。便宜的检查在前，鉴权先于业务状态。
type Service struct {
	st    *store.Store
	notif Notifier
	clock func() time.Time
}

func NewService(st *store.Store, notif Notifier, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{st: st, notif: notif, clock: clock}
}

// ApplicationBody createApplication/updateApplication 的 memberApplication 字段。
type ApplicationBody struct {
	Description string `json:"description"`
}

// ApplicationReq 三个申请操作共用的请求壳。
type ApplicationReq struct {
	UserID            string           `json:"userId"`
	ServerID          string           `json:"serverId"`
	MemberApplication *ApplicationBody `json:"memberApplication,omitempty"`
}

func (r *ApplicationReq) Validate(needBody bool) error {
	if r == nil || r.UserID == "" || r.ServerID == "" {
		return errs.ErrDataInvalid.WrapMsg("userId/serverId required")
	}
	if needBody {
		if r.MemberApplication == nil {
			return errs.ErrDataInvalid.WrapMsg("memberApplication required")
		}
		if len(r.MemberApplication.Description) > maxDescriptionLen {
			return errs.ErrDataInvalid.WrapMsg("description too long")
		}
	}
	return nil
}

// loadContext 一次把操作涉及的实体取齐。
type opContext struct {
	target   *model.User
	server   *model.Server
	operator *model.Member // 操作者在该服务器的成员记录，可能为 nil
	rel      Relation
	perm     int32
}

func (s *Service) loadContext(ctx context.Context, operatorID string, req *ApplicationReq) (*opContext, error) {
	target, err := s.st.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errs.ErrInternal.WrapMsg("target user not found", "user_id", req.UserID)
	}
	server, err := s.st.GetServer(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, errs.ErrInternal.WrapMsg("server not found", "server_id", req.ServerID)
	}
	opUser, err := s.st.GetUser(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if opUser == nil {
		return nil, errs.ErrInternal.WrapMsg("operator not found", "user_id", operatorID)
	}

	oc := &opContext{target: target, server: server, rel: RelationOther}
	if operatorID == req.UserID {
		oc.rel = RelationSelf
	}

	member, err := s.st.GetMember(ctx, operatorID, req.ServerID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		if member.IsBlocked {
			return nil, errs.ErrUserBlocked.WrapMsg("operator blocked", "server_id", req.ServerID)
		}
		oc.operator = member
		oc.perm = member.PermissionLevel
	}
	return oc, nil
}

// Create createApplication({userId, serverId, memberApplication})
func (s *Service) Create(ctx context.Context, operatorID string, req *ApplicationReq) error {
	if err := req.Validate(true); err != nil {
		return err
	}
	oc, err := s.loadContext(ctx, operatorID, req)
	if err != nil {
		return err
	}

	appID := model.ApplicationID(req.UserID, req.ServerID)
	err = s.st.WithKey(appID, func() error {
		existing, err := s.st.GetApplication(ctx, req.UserID, req.ServerID)
		if err != nil {
			return err
		}
		status := model.ApplicationPending
		if existing != nil {
			status = existing.ApplicationStatus
		}
		if err := Decide(OpCreate, status, oc.rel, oc.perm); err != nil {
			return err
		}
		if existing != nil && !existing.Terminal() {
			// 产品层尚未决定是否拒绝重复 create，这里保留覆盖语义但留痕。
			logger.Warnf("[apps] create overwrites pending application id=%s", appID)
		}
		now := s.clock()
		app := &model.MemberApplication{
			ID:                appID,
			UserID:            req.UserID,
			ServerID:          req.ServerID,
			ApplicationStatus: model.ApplicationPending,
			Description:       req.MemberApplication.Description,
			CreateTime:        now,
			UpdateTime:        now,
		}
		return s.st.PutApplication(ctx, app)
	})
	if err != nil {
		return err
	}
	return s.pushApplications(ctx, req.ServerID)
}

// Update updateApplication({userId, serverId, memberApplication})
func (s *Service) Update(ctx context.Context, operatorID string, req *ApplicationReq) error {
	if err := req.Validate(true); err != nil {
		return err
	}
	oc, err := s.loadContext(ctx, operatorID, req)
	if err != nil {
		return err
	}

	appID := model.ApplicationID(req.UserID, req.ServerID)
	err = s.st.WithKey(appID, func() error {
		app, err := s.st.GetApplication(ctx, req.UserID, req.ServerID)
		if err != nil {
			return err
		}
		if app == nil {
			return errs.ErrInternal.WrapMsg("application not found", "id", appID)
		}
		if err := Decide(OpUpdate, app.ApplicationStatus, oc.rel, oc.perm); err != nil {
			return err
		}
		app.Description = req.MemberApplication.Description
		app.UpdateTime = s.clock()
		return s.st.PutApplication(ctx, app)
	})
	if err != nil {
		return err
	}
	return s.pushApplications(ctx, req.ServerID)
}

// Delete deleteApplication({userId, serverId})
func (s *Service) Delete(ctx context.Context, operatorID string, req *ApplicationReq) error {
	if err := req.Validate(false); err != nil {
		return err
	}
	oc, err := s.loadContext(ctx, operatorID, req)
	if err != nil {
		return err
	}

	appID := model.ApplicationID(req.UserID, req.ServerID)
	err = s.st.WithKey(appID, func() error {
		app, err := s.st.GetApplication(ctx, req.UserID, req.ServerID)
		if err != nil {
			return err
		}
		if app == nil {
			return errs.ErrInternal.WrapMsg("application not found", "id", appID)
		}
		if err := Decide(OpDelete, app.ApplicationStatus, oc.rel, oc.perm); err != nil {
			return err
		}
		return s.st.DeleteApplication(ctx, req.UserID, req.ServerID)
	})
	if err != nil {
		return err
	}
	return s.pushApplications(ctx, req.ServerID)
}

// Approve 审批通过：申请转终态，成员记录不存在则创建。
func (s *Service) Approve(ctx context.Context, operatorID string, req *ApplicationReq) error {
	return s.settle(ctx, operatorID, req, OpApprove)
}

// Reject 审批拒绝。
func (s *Service) Reject(ctx context.Context, operatorID string, req *ApplicationReq) error {
	return s.settle(ctx, operatorID, req, OpReject)
}

func (s *Service) settle(ctx context.Context, operatorID string, req *ApplicationReq, op Op) error {
	if err := req.Validate(false); err != nil {
		return err
	}
	oc, err := s.loadContext(ctx, operatorID, req)
	if err != nil {
		return err
	}

	appID := model.ApplicationID(req.UserID, req.ServerID)
	err = s.st.WithKey(appID, func() error {
		app, err := s.st.GetApplication(ctx, req.UserID, req.ServerID)
		if err != nil {
			return err
		}
		if app == nil {
			return errs.ErrInternal.WrapMsg("application not found", "id", appID)
		}
		if err := Decide(op, app.ApplicationStatus, oc.rel, oc.perm); err != nil {
			return err
		}
		now := s.clock()
		if op == OpApprove {
			app.ApplicationStatus = model.ApplicationAccepted
		} else {
			app.ApplicationStatus = model.ApplicationRejected
		}
		app.HandledBy = operatorID
		app.HandledAt = &now
		app.UpdateTime = now
		if err := s.st.PutApplication(ctx, app); err != nil {
			return err
		}

		if op != OpApprove {
			return nil
		}
		// 通过即入服：成员记录不存在则建一条。
		memberKey := model.MemberID(req.UserID, req.ServerID)
		return s.st.WithKey(memberKey, func() error {
			member, err := s.st.GetMember(ctx, req.UserID, req.ServerID)
			if err != nil {
				return err
			}
			if member != nil {
				return nil
			}
			return s.st.PutMember(ctx, &model.Member{
				ID:              memberKey,
				UserID:          req.UserID,
				ServerID:        req.ServerID,
				Nickname:        oc.target.Nickname,
				PermissionLevel: model.PermMember,
				JoinTime:        now,
				UpdateTime:      now,
			})
		})
	})
	if err != nil {
		return err
	}
	return s.pushApplications(ctx, req.ServerID)
}

// pushApplications 重算全量列表后同时发两个事件：
// 合入服务器更新流的增量事件 + 专用全量列表事件。
// 两者携带同一份快照，订阅任一事件的消费者看到的都是变更后状态。
func (s *Service) pushApplications(ctx context.Context, serverID string) error {
	list, err := s.st.ListServerApplications(ctx, serverID)
	if err != nil {
		return err
	}
	if s.notif == nil {
		return nil
	}
	s.notif.NotifyServer(serverID, EventServerUpdate, map[string]any{"memberApplications": list})
	s.notif.NotifyServer(serverID, EventApplicationsUpdate, list)
	return nil
}
