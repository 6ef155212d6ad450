package repositories

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/law"
	driver "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/neo4j"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
)

type neo4jLawRepo struct {
	driver driver.DriverInterface
	log    logging.Logger
}

func NewNeo4jLawRepo(d driver.DriverInterface, log logging.Logger) law.Repository {
	return &neo4jLawRepo{driver: d, log: log}
}

func (r *neo4jLawRepo) UpsertCitations(ctx context.Context, citations []law.Citation) error {
	if len(citations) == 0 {
		return nil
	}
	query := `
		UNWIND $batch AS row
		MERGE (l:law_node {number: row.number})
		SET l.content = row.content
	`
	batch := make([]map[string]any, 0, len(citations))
	for _, c := range citations {
		batch = append(batch, map[string]any{"number": c.Number, "content": c.Content})
	}
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"batch": batch})
		return nil, err
	})
	if err == nil {
		r.log.Info("law nodes upserted", logging.Int("count", len(citations)))
	}
	return err
}

// GetCitations returns the stored citations in the order of numbers.
// Unknown numbers are skipped.
func (r *neo4jLawRepo) GetCitations(ctx context.Context, numbers []string) ([]law.Citation, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	query := `
		UNWIND $numbers AS n
		MATCH (l:law_node {number: n})
		RETURN l.number AS number, l.content AS content
	`
	res, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"numbers": numbers})
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, result, func(rec *neo4j.Record) (law.Citation, error) {
			number, err := driver.RecordString(rec, "number")
			if err != nil {
				return law.Citation{}, err
			}
			content, err := driver.RecordString(rec, "content")
			return law.Citation{Number: number, Content: content}, err
		})
	})
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string]law.Citation)
	for _, c := range res.([]law.Citation) {
		byNumber[c.Number] = c
	}
	out := make([]law.Citation, 0, len(byNumber))
	for _, n := range numbers {
		if c, ok := byNumber[n]; ok {
			out = append(out, c)
			delete(byNumber, n)
		}
	}
	return out, nil
}

// LinkCase relates a case and its section nodes to the cited law nodes.
// Numbers with no law node are logged and skipped.
func (r *neo4jLawRepo) LinkCase(ctx context.Context, caseID int64, numbers []string) error {
	if len(numbers) == 0 {
		return nil
	}
	linkCase := `
		MATCH (c:case_node {case_id: $case_id})
		UNWIND $numbers AS n
		MATCH (l:law_node {number: n})
		MERGE (c)-[:used_law_relation]->(l)
		RETURN collect(DISTINCT l.number) AS linked
	`
	linkSections := `
		MATCH (c:case_node {case_id: $case_id})-->(s)
		WHERE s:fact_text OR s:law_text OR s:compensation_text OR s:conclusion_text
		UNWIND $numbers AS n
		MATCH (l:law_node {number: n})
		MERGE (s)-[:used_law_relation]->(l)
	`
	params := map[string]any{"case_id": caseID, "numbers": numbers}

	res, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, linkCase, params)
		if err != nil {
			return nil, err
		}
		linked, err := driver.ExtractSingleRecord(ctx, result, func(rec *neo4j.Record) ([]string, error) {
			return driver.RecordStrings(rec, "linked")
		})
		if err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, linkSections, params); err != nil {
			return nil, err
		}
		return linked, nil
	})
	if err != nil {
		return err
	}

	linked := make(map[string]bool)
	for _, n := range res.([]string) {
		linked[n] = true
	}
	var missing []string
	for _, n := range numbers {
		if !linked[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		r.log.Warn("cited laws missing from corpus", logging.CaseID(caseID), logging.Strings("numbers", missing))
	}
	return nil
}

func (r *neo4jLawRepo) LawNumbersByCase(ctx context.Context, caseIDs []int64) (map[int64][]string, error) {
	if len(caseIDs) == 0 {
		return map[int64][]string{}, nil
	}
	query := `
		UNWIND $case_ids AS id
		MATCH (c:case_node {case_id: id})-[:used_law_relation]->(l:law_node)
		RETURN id AS case_id, collect(DISTINCT l.number) AS numbers
	`
	type row struct {
		id      int64
		numbers []string
	}
	res, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"case_ids": caseIDs})
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, result, func(rec *neo4j.Record) (row, error) {
			id, _, err := driver.RecordInt64(rec, "case_id")
			if err != nil {
				return row{}, err
			}
			numbers, err := driver.RecordStrings(rec, "numbers")
			return row{id: id, numbers: numbers}, err
		})
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]string)
	for _, rw := range res.([]row) {
		out[rw.id] = rw.numbers
	}
	return out, nil
}
