package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the slice of a Neo4j result set the store consumes.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner runs a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Session is one opened graph session.
type Session interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions. The driver-backed implementation is the
// production path; tests substitute their own.
type SessionOpener interface {
	OpenSession(ctx context.Context) Session
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (d driverOpener) OpenSession(ctx context.Context) Session {
	return neo4jSession{sess: d.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type neo4jSession struct {
	sess neo4j.SessionWithContext
}

func (s neo4jSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s neo4jSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx: tx})
	})
}

func (s neo4jSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r txRunner) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return r.tx.Run(ctx, cypher, params)
}
