package apps

import (
	"VProject/module/voice/model"
	"VProject/tools/errs"
)

// Op 申请上的操作种类。
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
	OpApprove
	OpReject
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "createApplication"
	case OpUpdate:
		return "updateApplication"
	case OpDelete:
		return "deleteApplication"
	case OpApprove:
		return "approveApplication"
	case OpReject:
		return "rejectApplication"
	}
	return "unknown"
}

// Relation 操作者与申请的关系。
type Relation int

const (
	RelationSelf  Relation = iota // 操作自己的申请
	RelationOther                 // 操作他人的申请
)

// ===== 决策表 =====
//
// (操作, 关系, 申请是否 pending) -> 放行/拒绝。
// 权限门槛单独前置：他人申请以及审批操作都要求操作者在该服务器的
// permissionLevel >= PermManageThreshold，并且先于状态检查判定
// （鉴权失败优先于业务状态失败）。

type decisionKey struct {
	op      Op
	rel     Relation
	pending bool
}

type ruling struct {
	allow bool
	deny  errs.CodeError
}

var decisions = map[decisionKey]ruling{
	// create：对自己无条件放行；已有记录被覆盖的问题由调用层记录。
	{OpCreate, RelationSelf, true}:   {allow: true},
	{OpCreate, RelationSelf, false}:  {allow: true},
	{OpCreate, RelationOther, true}:  {allow: true},
	{OpCreate, RelationOther, false}: {allow: true},

	// update/delete：pending 才可动，终态不可再改。
	{OpUpdate, RelationSelf, true}:   {allow: true},
	{OpUpdate, RelationSelf, false}:  {deny: errs.ErrApplicationProcessed},
	{OpUpdate, RelationOther, true}:  {allow: true},
	{OpUpdate, RelationOther, false}: {deny: errs.ErrApplicationProcessed},

	{OpDelete, RelationSelf, true}:   {allow: true},
	{OpDelete, RelationSelf, false}:  {deny: errs.ErrApplicationProcessed},
	{OpDelete, RelationOther, true}:  {allow: true},
	{OpDelete, RelationOther, false}: {deny: errs.ErrApplicationProcessed},

	// approve/reject：只能处理 pending 的申请。
	{OpApprove, RelationSelf, true}:   {allow: true},
	{OpApprove, RelationSelf, false}:  {deny: errs.ErrApplicationProcessed},
	{OpApprove, RelationOther, true}:  {allow: true},
	{OpApprove, RelationOther, false}: {deny: errs.ErrApplicationProcessed},
	{OpReject, RelationSelf, true}:    {allow: true},
	{OpReject, RelationSelf, false}:   {deny: errs.ErrApplicationProcessed},
	{OpReject, RelationOther, true}:   {allow: true},
	{OpReject, RelationOther, false}:  {deny: errs.ErrApplicationProcessed},
}

// needsManagePerm 这些情形必须有管理权限。
func needsManagePerm(op Op, rel Relation) bool {
	if op == OpApprove || op == OpReject {
		return true // 审批永远是管理动作，对自己的申请也不例外
	}
	return rel == RelationOther
}

// Decide 纯函数：给定操作、当前状态、关系与操作者权限等级，
// 返回 nil（放行）或对应的拒绝错误。与传输层完全解耦。
func Decide(op Op, status string, rel Relation, permLevel int32) error {
	if needsManagePerm(op, rel) && permLevel < model.PermManageThreshold {
		return errs.ErrPermissionDenied.WrapMsg("op", "op", op.String(), "perm", permLevel)
	}
	r, ok := decisions[decisionKey{op, rel, status == model.ApplicationPending}]
	if !ok {
		return errs.ErrInternal.WrapMsg("no ruling", "op", op.String())
	}
	if !r.allow {
		return r.deny.WrapMsg("op", "op", op.String(), "status", status)
	}
	return nil
}
