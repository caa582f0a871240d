package storage

import (
	"context"
	"time"

	redis2 "VProject/service/storage/redis"
	"VProject/tools/security"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ===== 会话令牌存储 =====
//
// session key: vc:session:<tokenHash> -> userId
// 一个令牌只对应一个用户；一个用户可以同时持有多个令牌，
// 令牌的存续独立于任何一条连接的生命周期。

func sessionKey(tokenHash string) string { return "vc:session:" + tokenHash }

// SessionCreate 签发并登记会话令牌，返回明文令牌。
func SessionCreate(opts security.Options, userID string) (string, time.Time, error) {
	token, tokenHash, expireAt, err := security.Generate(opts, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := time.Until(expireAt)
	if err := redis2.GetRedis().Set(context.Background(), sessionKey(tokenHash), userID, ttl).Err(); err != nil {
		return "", time.Time{}, err
	}
	return token, expireAt, nil
}

// SessionResolve 校验令牌并返回其绑定的用户。
// 签名合法但已登出（键不存在）的令牌同样视为无效。
func SessionResolve(opts security.Options, token string) (string, error) {
	claims, err := security.Verify(opts, token, "")
	if err != nil {
		return "", err
	}
	userID := claims.UserID()
	if userID == "" {
		return "", errors.New("token has no subject")
	}
	stored, err := redis2.GetRedis().Get(context.Background(), sessionKey(security.HashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return "", errors.New("session revoked or expired")
	}
	if err != nil {
		return "", err
	}
	if stored != userID {
		return "", errors.New("session user mismatch")
	}
	return userID, nil
}

// SessionDelete 注销令牌（登出）。重复删除幂等。
func SessionDelete(token string) error {
	return redis2.GetRedis().Del(context.Background(), sessionKey(security.HashToken(token))).Err()
}
