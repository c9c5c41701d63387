package mongoutil

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Tx runs fn inside one transaction; any error aborts the whole unit.
type Tx interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoTx struct {
	client *mongo.Client
}

// NewMongoTx returns a Tx backed by mongo sessions. Requires a replica set
// (standalone mongod has no multi-document transactions).
func NewMongoTx(_ context.Context, client *mongo.Client) (Tx, error) {
	return &mongoTx{client: client}, nil
}

func (t *mongoTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	}, txOpts)
	return err
}
