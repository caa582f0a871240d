package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// KV 持久层的最小接口：按 (collection, id) 读/写/删，外加一个
// 单字段等值查询用于重算列表。没有 CAS，没有事务 —— 读改写的
// 串行化由上层的 key 锁负责，而不是由存储负责。
type KV interface {
	// Get 读取一条记录到 dest；不存在返回 (false, nil)。
	Get(ctx context.Context, coll, id string, dest any) (bool, error)
	// Set 覆盖写入一条记录（upsert 语义）。
	Set(ctx context.Context, coll, id string, rec any) error
	// Delete 删除一条记录；不存在时幂等。
	Delete(ctx context.Context, coll, id string) error
	// Find 单字段等值查询，返回原始 BSON 文档。
	Find(ctx context.Context, coll, field, value string) ([]bson.Raw, error)
}
