package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"VProject/tools/errs"
)

// 请求帧操作名（兼容面）。
const (
	OpAuth               = "auth"
	OpLogout             = "logout"
	OpPing               = "ping"
	OpSubscribeServer    = "subscribeServer"
	OpUnsubscribeServer  = "unsubscribeServer"
	OpJoinChannel        = "joinChannel"
	OpLeaveChannel       = "leaveChannel"
	OpCreateApplication  = "createApplication"
	OpUpdateApplication  = "updateApplication"
	OpDeleteApplication  = "deleteApplication"
	OpApproveApplication = "approveApplication"
	OpRejectApplication  = "rejectApplication"
)

// 服务端事件名。
const (
	EventConnected = "connected"
	EventAuthAck   = "authAck"
	EventLogoutAck = "logoutAck"
	EventPong      = "pong"
	EventError     = "error"
)

// Frame 客户端请求帧：{op, seq, data}。
type Frame struct {
	Op   string         `json:"op"`
	Seq  int64          `json:"seq,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// EventFrame 服务端推送帧。
type EventFrame struct {
	Op   string `json:"op"`
	Seq  int64  `json:"seq,omitempty"`
	Ts   int64  `json:"ts"`
	Data any    `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Op == "" {
		return nil, fmt.Errorf("frame missing op")
	}
	return &f, nil
}

// BuildEvent 构造推送帧。编码失败是编程错误，记录后返回 nil 让调用方跳过。
func BuildEvent(op string, payload any) []byte {
	data, err := json.Marshal(EventFrame{
		Op:   op,
		Ts:   time.Now().UnixMilli(),
		Data: payload,
	})
	if err != nil {
		return nil
	}
	return data
}

// BuildReply 构造带 seq 的应答帧。
func BuildReply(op string, seq int64, payload any) []byte {
	data, err := json.Marshal(EventFrame{
		Op:   op,
		Seq:  seq,
		Ts:   time.Now().UnixMilli(),
		Data: payload,
	})
	if err != nil {
		return nil
	}
	return data
}

// ErrorBody error 事件载荷：code/message/operation/reason/status。
type ErrorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
	Status    int    `json:"status"`
}

// BuildError 把任意错误归一化成标准 error 事件。
// 只发给请求方连接，永远不进广播流。
func BuildError(operation string, seq int64, err error) []byte {
	ce := errs.AsCodeError(err)
	msg := ce.Msg
	if ce.Detail != "" && ce.Code != 500 {
		// 5xx 的内部细节不外发
		msg = ce.Msg + ": " + ce.Detail
	}
	return BuildReply(EventError, seq, ErrorBody{
		Code:      ce.Code,
		Message:   msg,
		Operation: operation,
		Reason:    ce.Reason,
		Status:    ce.Code,
	})
}
