package repositories

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	driver "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/neo4j"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

type neo4jQueryRepo struct {
	driver driver.DriverInterface
	log    logging.Logger
}

func NewNeo4jQueryRepo(d driver.DriverInterface, log logging.Logger) casefile.QueryRepository {
	return &neo4jQueryRepo{driver: d, log: log}
}

// SaveQuery stores text under max(query_id)+1, starting at 0.
func (r *neo4jQueryRepo) SaveQuery(ctx context.Context, text string) (*casefile.UserQuery, error) {
	query := `
		OPTIONAL MATCH (q:user_query)
		WITH coalesce(max(q.query_id), -1) + 1 AS next_id
		CREATE (n:user_query {query_id: next_id, query_text: $text, created_at: datetime()})
		RETURN n.query_id AS query_id
	`
	res, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"text": text})
		if err != nil {
			return nil, err
		}
		return driver.ExtractSingleRecord(ctx, result, func(rec *neo4j.Record) (int64, error) {
			id, _, err := driver.RecordInt64(rec, "query_id")
			return id, err
		})
	})
	if err != nil {
		return nil, err
	}
	id := res.(int64)
	r.log.Info("user query stored", logging.Int64("query_id", id))
	return &casefile.UserQuery{QueryID: id, Text: text}, nil
}
