package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/casefile"
	"github.com/turtacn/TrafficLaw-RAG/internal/domain/document"
	driver "github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/database/neo4j"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// sectionKind binds an indictment part to its node label and relationship.
type sectionKind struct {
	label    string
	relation string
}

var sectionKinds = [4]sectionKind{
	{"fact_text", "fact_text_relation"},
	{"law_text", "law_text_relation"},
	{"compensation_text", "compensation_text_relation"},
	{"conclusion_text", "conclusion_text_relation"},
}

type neo4jCaseRepo struct {
	driver driver.DriverInterface
	log    logging.Logger
}

func NewNeo4jCaseRepo(d driver.DriverInterface, log logging.Logger) casefile.Repository {
	return &neo4jCaseRepo{driver: d, log: log}
}

func (r *neo4jCaseRepo) MaxCaseID(ctx context.Context) (int64, bool, error) {
	type maxID struct {
		id    int64
		found bool
	}
	res, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (c:case_node) RETURN max(c.case_id) AS max_id`, nil)
		if err != nil {
			return nil, err
		}
		return driver.ExtractSingleRecord(ctx, result, func(rec *neo4j.Record) (maxID, error) {
			id, isNil, err := driver.RecordInt64(rec, "max_id")
			return maxID{id: id, found: !isNil}, err
		})
	})
	if err != nil {
		return 0, false, err
	}
	m := res.(maxID)
	return m.id, m.found, nil
}

func (r *neo4jCaseRepo) Save(ctx context.Context, rec *casefile.CaseRecord) error {
	query := `
		MERGE (c:case_node {case_id: $case_id})
		ON CREATE SET c.created_at = datetime()
		SET c.case_text = $case_text, c.case_type = $case_type
	`
	params := map[string]any{
		"case_id":   rec.CaseID,
		"case_text": rec.RawText,
		"case_type": rec.CaseType,
	}
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err == nil {
		r.log.Debug("case node saved", logging.CaseID(rec.CaseID), logging.String("case_type", rec.CaseType))
	}
	return err
}

func (r *neo4jCaseRepo) Get(ctx context.Context, caseID int64) (*casefile.CaseRecord, error) {
	query := `
		MATCH (c:case_node {case_id: $case_id})
		RETURN c.case_id AS case_id, c.case_text AS case_text, c.case_type AS case_type, c.created_at AS created_at
	`
	res, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"case_id": caseID})
		if err != nil {
			return nil, err
		}
		return driver.ExtractSingleRecord(ctx, result, mapCaseRecord)
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeCaseNotFound, "case %d not found", caseID)
		}
		return nil, err
	}
	return res.(*casefile.CaseRecord), nil
}

func mapCaseRecord(rec *neo4j.Record) (*casefile.CaseRecord, error) {
	id, _, err := driver.RecordInt64(rec, "case_id")
	if err != nil {
		return nil, err
	}
	text, err := driver.RecordString(rec, "case_text")
	if err != nil {
		return nil, err
	}
	caseType, err := driver.RecordString(rec, "case_type")
	if err != nil {
		return nil, err
	}
	out := &casefile.CaseRecord{CaseID: id, RawText: text, CaseType: caseType}
	if created, ok := rec.Get("created_at"); ok {
		if t, ok := created.(time.Time); ok {
			out.CreatedAt = t
		}
	}
	return out, nil
}

// SaveSections upserts the four section nodes of a case and links them to
// the case node. The case node must exist.
func (r *neo4jCaseRepo) SaveSections(ctx context.Context, caseID int64, s *document.Indictment) error {
	chunks := [4]string{s.Fact, s.Law, s.Compensation, s.Conclusion}
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		for i, kind := range sectionKinds {
			query := fmt.Sprintf(`
				MATCH (c:case_node {case_id: $case_id})
				MERGE (s:%s {case_id: $case_id})
				SET s.chunk = $chunk
				MERGE (c)-[:%s]->(s)
			`, kind.label, kind.relation)
			if _, err := tx.Run(ctx, query, map[string]any{"case_id": caseID, "chunk": chunks[i]}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err == nil {
		r.log.Debug("indictment sections saved", logging.CaseID(caseID))
	}
	return err
}

func (r *neo4jCaseRepo) GetSections(ctx context.Context, caseID int64) (*document.Indictment, error) {
	query := `
		MATCH (c:case_node {case_id: $case_id})
		OPTIONAL MATCH (c)-[:fact_text_relation]->(f:fact_text)
		OPTIONAL MATCH (c)-[:law_text_relation]->(l:law_text)
		OPTIONAL MATCH (c)-[:compensation_text_relation]->(m:compensation_text)
		OPTIONAL MATCH (c)-[:conclusion_text_relation]->(d:conclusion_text)
		RETURN f.chunk AS fact, l.chunk AS law, m.chunk AS compensation, d.chunk AS conclusion
		LIMIT 1
	`
	res, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"case_id": caseID})
		if err != nil {
			return nil, err
		}
		return driver.ExtractSingleRecord(ctx, result, func(rec *neo4j.Record) (*document.Indictment, error) {
			var out document.Indictment
			var err error
			if out.Fact, err = driver.RecordString(rec, "fact"); err != nil {
				return nil, err
			}
			if out.Law, err = driver.RecordString(rec, "law"); err != nil {
				return nil, err
			}
			if out.Compensation, err = driver.RecordString(rec, "compensation"); err != nil {
				return nil, err
			}
			if out.Conclusion, err = driver.RecordString(rec, "conclusion"); err != nil {
				return nil, err
			}
			return &out, nil
		})
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeCaseNotFound, "case %d not found", caseID)
		}
		return nil, err
	}
	out := res.(*document.Indictment)
	if *out == (document.Indictment{}) {
		return nil, errors.Newf(errors.ErrCodeCaseNotFound, "case %d has no indictment sections", caseID)
	}
	return out, nil
}

func (r *neo4jCaseRepo) Conclusions(ctx context.Context, caseIDs []int64) (map[int64]string, error) {
	if len(caseIDs) == 0 {
		return map[int64]string{}, nil
	}
	query := `
		UNWIND $case_ids AS id
		MATCH (c:case_node {case_id: id})-[:conclusion_text_relation]->(d:conclusion_text)
		RETURN id AS case_id, d.chunk AS chunk
	`
	type row struct {
		id    int64
		chunk string
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
			chunk, err := driver.RecordString(rec, "chunk")
			return row{id: id, chunk: chunk}, err
		})
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string)
	for _, rw := range res.([]row) {
		out[rw.id] = rw.chunk
	}
	return out, nil
}
