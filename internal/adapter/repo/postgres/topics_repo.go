package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
)

// TopicRepo maintains the topics table and the worker_topics relation.
// Topics are populated when a worker comes online and purged when it goes
// offline; both operations are idempotent.
type TopicRepo struct{ Pool PgxPool }

// NewTopicRepo constructs a TopicRepo with the given pool.
func NewTopicRepo(p PgxPool) *TopicRepo { return &TopicRepo{Pool: p} }

// UpsertWorkerTopics inserts any missing topics and associates the worker
// with each of them.
func (r *TopicRepo) UpsertWorkerTopics(ctx context.Context, workerName string, topics []string) error {
	tracer := otel.Tracer("repo.topics")
	ctx, span := tracer.Start(ctx, "topics.UpsertWorkerTopics")
	defer span.End()

	if len(topics) == 0 {
		return nil
	}
	insert := `
	INSERT INTO topics (name)
	SELECT * FROM unnest($1::text[])
	ON CONFLICT (name) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, insert, topics); err != nil {
		return fmt.Errorf("op=topic.upsert: %w", err)
	}

	relate := `
	INSERT INTO worker_topics (worker_name, topic_id)
	SELECT $1, id FROM topics WHERE name = ANY($2::text[])
	ON CONFLICT (worker_name, topic_id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, relate, workerName, topics); err != nil {
		return fmt.Errorf("op=topic.relate: %w", err)
	}
	return nil
}

// RemoveWorkerTopics drops every topic association for the worker.
func (r *TopicRepo) RemoveWorkerTopics(ctx context.Context, workerName string) error {
	tracer := otel.Tracer("repo.topics")
	ctx, span := tracer.Start(ctx, "topics.RemoveWorkerTopics")
	defer span.End()
	q := `DELETE FROM worker_topics WHERE worker_name = $1`
	if _, err := r.Pool.Exec(ctx, q, workerName); err != nil {
		return fmt.Errorf("op=topic.remove: %w", err)
	}
	return nil
}
