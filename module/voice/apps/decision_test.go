package apps

import (
	"testing"

	"VProject/module/voice/model"
	"VProject/tools/errs"

	"github.com/stretchr/testify/assert"
)

func TestDecidePermissionGateFirst(t *testing.T) {
	// 鉴权失败要先于业务状态失败：对他人的终态申请、权限又不够时,
	// 必须报 PERMISSION_DENIED 而不是 APPLICATION_ALREADY_PROCESSED。
	err := Decide(OpUpdate, model.ApplicationAccepted, RelationOther, model.PermChannelAdmin)
	assert.True(t, errs.ErrPermissionDenied.Is(err))

	err = Decide(OpDelete, model.ApplicationRejected, RelationOther, model.PermVisitor)
	assert.True(t, errs.ErrPermissionDenied.Is(err))
}

func TestDecideSelfOps(t *testing.T) {
	// 对自己的申请无需管理权限
	assert.NoError(t, Decide(OpCreate, model.ApplicationPending, RelationSelf, 0))
	assert.NoError(t, Decide(OpUpdate, model.ApplicationPending, RelationSelf, 0))
	assert.NoError(t, Decide(OpDelete, model.ApplicationPending, RelationSelf, 0))

	// 终态后自己也动不了
	err := Decide(OpUpdate, model.ApplicationAccepted, RelationSelf, 0)
	assert.True(t, errs.ErrApplicationProcessed.Is(err))
	err = Decide(OpDelete, model.ApplicationRejected, RelationSelf, 0)
	assert.True(t, errs.ErrApplicationProcessed.Is(err))
}

func TestDecideOtherOpsNeedManagePerm(t *testing.T) {
	err := Decide(OpUpdate, model.ApplicationPending, RelationOther, model.PermChannelAdmin)
	assert.True(t, errs.ErrPermissionDenied.Is(err), "perm 4 on someone else's application must be denied")

	assert.NoError(t, Decide(OpUpdate, model.ApplicationPending, RelationOther, model.PermServerAdmin))
	assert.NoError(t, Decide(OpDelete, model.ApplicationPending, RelationOther, model.PermServerOwner))
}

func TestDecideApproveRejectAlwaysManage(t *testing.T) {
	// 审批自己的申请同样要求管理权限
	err := Decide(OpApprove, model.ApplicationPending, RelationSelf, model.PermMember)
	assert.True(t, errs.ErrPermissionDenied.Is(err))

	assert.NoError(t, Decide(OpApprove, model.ApplicationPending, RelationOther, model.PermServerAdmin))
	assert.NoError(t, Decide(OpReject, model.ApplicationPending, RelationOther, model.PermServerAdmin))

	// 终态申请不能再审批
	err = Decide(OpApprove, model.ApplicationAccepted, RelationOther, model.PermOfficial)
	assert.True(t, errs.ErrApplicationProcessed.Is(err))
	err = Decide(OpReject, model.ApplicationRejected, RelationOther, model.PermOfficial)
	assert.True(t, errs.ErrApplicationProcessed.Is(err))
}
