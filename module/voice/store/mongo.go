package store

import (
	"context"

	"VProject/tools/errs"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoKV 基于 mongo 的 KV 实现；id 统一落在 _id 上。
type mongoKV struct {
	db *mongo.Database
}

func NewMongoKV(db *mongo.Database) KV {
	return &mongoKV{db: db}
}

func (m *mongoKV) Get(ctx context.Context, coll, id string, dest any) (bool, error) {
	err := m.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, errs.WrapMsg(err, "mongo get", "coll", coll, "id", id)
	}
	return true, nil
}

func (m *mongoKV) Set(ctx context.Context, coll, id string, rec any) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, rec, opts)
	if err != nil {
		return errs.WrapMsg(err, "mongo set", "coll", coll, "id", id)
	}
	return nil
}

func (m *mongoKV) Delete(ctx context.Context, coll, id string) error {
	_, err := m.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.WrapMsg(err, "mongo delete", "coll", coll, "id", id)
	}
	return nil
}

func (m *mongoKV) Find(ctx context.Context, coll, field, value string) ([]bson.Raw, error) {
	cur, err := m.db.Collection(coll).Find(ctx, bson.M{field: value})
	if err != nil {
		return nil, errs.WrapMsg(err, "mongo find", "coll", coll, "field", field)
	}
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		out = append(out, append(bson.Raw(nil), cur.Current...))
	}
	if err := cur.Err(); err != nil {
		return nil, errs.WrapMsg(err, "mongo cursor", "coll", coll)
	}
	return out, nil
}
