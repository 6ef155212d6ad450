package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DraftRequest asks for a new indictment draft.
type DraftRequest struct {
	Query            string `json:"query"`
	SearchType       string `json:"search_type,omitempty"`
	TopK             int    `json:"top_k,omitempty"`
	LawThreshold     int    `json:"law_threshold,omitempty"`
	ReferenceCaseID  *int64 `json:"reference_case_id,omitempty"`
	FilterByCaseType bool   `json:"filter_by_case_type,omitempty"`
}

// DraftResult is a completed or degraded drafting run.
type DraftResult struct {
	RunID          string           `json:"run_id"`
	QueryID        *int64           `json:"query_id,omitempty"`
	Status         string           `json:"status"`
	Classification *Classification  `json:"classification,omitempty"`
	Retrieval      *RetrievalResult `json:"retrieval,omitempty"`
	LawReview      *LawReview       `json:"law_review,omitempty"`
	Draft          *Draft           `json:"draft,omitempty"`
	Archive        *ArchiveRef      `json:"archive,omitempty"`
}

// Degraded reports whether any stage fell back to its last attempt.
func (r *DraftResult) Degraded() bool {
	return r.Draft != nil && len(r.Draft.DegradedStages) > 0
}

// Classification is the case type and parties read from the query.
type Classification struct {
	CaseType       string  `json:"case_type"`
	Parties        Parties `json:"parties"`
	PlaintiffsLine string  `json:"plaintiffs_line"`
}

// Parties lists the people named in the accident facts.
type Parties struct {
	Plaintiffs        []string `json:"plaintiffs"`
	Defendants        []string `json:"defendants"`
	MinorDefendant    bool     `json:"minor_defendant"`
	EmployeeDefendant bool     `json:"employee_defendant"`
	AnimalCaused      bool     `json:"animal_caused"`
}

// LawReview records laws added or removed by the applicability check.
type LawReview struct {
	Citations []LawCitation `json:"citations"`
	Added     []string      `json:"added,omitempty"`
	Removed   []string      `json:"removed,omitempty"`
}

// LawCitation is one statute article.
type LawCitation struct {
	Number  string `json:"number"`
	Content string `json:"content"`
}

// Draft holds the assembled indictment and its sections.
type Draft struct {
	Summary        string   `json:"case_summary"`
	Facts          string   `json:"facts"`
	LawSection     string   `json:"law_section"`
	Compensation   string   `json:"compensation"`
	CalcTags       string   `json:"calc_tags"`
	Totals         []Total  `json:"totals"`
	Conclusion     string   `json:"conclusion"`
	Text           string   `json:"text"`
	State          string   `json:"state"`
	DegradedStages []string `json:"degraded_stages,omitempty"`
	Trace          *Trace   `json:"trace"`
}

// Total is the claimed amount for one plaintiff.
type Total struct {
	PlaintiffID string  `json:"plaintiff_id"`
	Amount      float64 `json:"amount"`
}

// Trace is the ordered list of drafting state transitions.
type Trace struct {
	Events []TraceEvent `json:"events"`
}

type TraceEvent struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Stage   string    `json:"stage"`
	Attempt int       `json:"attempt,omitempty"`
	Verdict *Verdict  `json:"verdict,omitempty"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// ArchiveRef locates the archived draft and trace objects.
type ArchiveRef struct {
	Bucket   string `json:"bucket"`
	DraftKey string `json:"draft_key"`
	TraceKey string `json:"trace_key"`
	Size     int64  `json:"size"`
}

// Run is one row of the drafting run history.
type Run struct {
	ID              string             `json:"id"`
	QueryID         *int64             `json:"query_id,omitempty"`
	Status          string             `json:"status"`
	SearchType      string             `json:"search_type"`
	TopK            int                `json:"top_k"`
	ReferenceCaseID *int64             `json:"reference_case_id,omitempty"`
	CaseType        string             `json:"case_type,omitempty"`
	LawNumbers      []string           `json:"law_numbers"`
	Totals          map[string]float64 `json:"totals"`
	DegradedStages  []string           `json:"degraded_stages"`
	ArchiveKey      string             `json:"archive_key,omitempty"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
}

// DraftsClient drafts indictments and reads the run history.
type DraftsClient struct {
	client *Client
}

// Create runs the drafting pipeline. A failed run returns an *APIError
// whose RunID names the recorded run.
func (d *DraftsClient) Create(ctx context.Context, req *DraftRequest) (*DraftResult, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	var out DraftResult
	if err := d.client.post(ctx, "/api/v1/drafts/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run fetches one run by id.
func (d *DraftsClient) Run(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}
	var out Run
	if err := d.client.get(ctx, "/api/v1/drafts/runs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recent lists the newest runs; limit <= 0 uses the server default.
func (d *DraftsClient) Recent(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/v1/drafts/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := d.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}
