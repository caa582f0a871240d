package progress

import (
	"math"
	"time"

	"VProject/module/voice/model"
)

// Curve 升级曲线：requiredXp(level) = ceil(BaseXP * GrowthRate^level)。
// 纯函数，只依赖等级。
type Curve struct {
	BaseXP     float64
	GrowthRate float64
}

func (c Curve) RequiredXP(level int32) int64 {
	return int64(math.Ceil(c.BaseXP * math.Pow(c.GrowthRate, float64(level))))
}

// VIPBoost 乘法加成：1 + 0.2*tier。
// 经验、贡献、财富三者使用同一个系数，同一次发放中一起变动。
func VIPBoost(tier int32) float64 {
	if tier <= 0 {
		return 1
	}
	return 1 + 0.2*float64(tier)
}

// ComputeCatchUp 离线补发的核心算术。
// 只补整周期：intervals = floor((now-last)/interval)；
// newLast 精确前移 intervals*interval 而不是对齐到 now，
// 不足一个周期的零头保留到下一次发放。
func ComputeCatchUp(now, lastAwardedAt time.Time, interval time.Duration) (intervals int64, newLast time.Time) {
	if interval <= 0 || !now.After(lastAwardedAt) {
		return 0, lastAwardedAt
	}
	intervals = int64(now.Sub(lastAwardedAt) / interval)
	newLast = lastAwardedAt.Add(time.Duration(intervals) * interval)
	return intervals, newLast
}

// GrantAmount 一次补发的总量（基础量 * 周期数 * VIP加成，四舍五入）。
func GrantAmount(perInterval, intervals int64, tier int32) int64 {
	return int64(math.Round(float64(perInterval*intervals) * VIPBoost(tier)))
}

// Normalize 升级归一化：发放后循环消化溢出，保证 xp < requiredXp(level)。
// requiredXp 依赖等级，每轮都要重算。
func Normalize(u *model.User, curve Curve) {
	required := curve.RequiredXP(u.Level)
	for u.XP >= required {
		u.XP -= required
		u.Level++
		required = curve.RequiredXP(u.Level)
	}
	u.RequiredXP = required
	if required > 0 {
		u.Progress = float64(u.XP) / float64(required)
	}
}
