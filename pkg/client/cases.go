package client

import (
	"context"
	"fmt"
)

// SearchRequest selects similar cases.
type SearchRequest struct {
	Query           string `json:"query"`
	SearchType      string `json:"search_type,omitempty"`
	TopK            int    `json:"top_k,omitempty"`
	LawThreshold    int    `json:"law_threshold,omitempty"`
	CaseType        string `json:"case_type,omitempty"`
	ReferenceCaseID *int64 `json:"reference_case_id,omitempty"`
}

// SearchHit is one nearest chunk.
type SearchHit struct {
	CaseID  int64   `json:"case_id"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Type    string  `json:"text_type"`
	Score   float64 `json:"score"`
}

// LawOccurrence counts how many similar cases cite a law.
type LawOccurrence struct {
	Number string `json:"number"`
	Count  int    `json:"count"`
}

// RetrievalResult is the evidence drafting builds on.
type RetrievalResult struct {
	SearchType      string            `json:"search_type"`
	TopK            int               `json:"top_k"`
	Hits            []SearchHit       `json:"hits"`
	CaseIDs         []int64           `json:"case_ids"`
	Occurrences     []LawOccurrence   `json:"occurrences"`
	Threshold       int               `json:"threshold"`
	LawNumbers      []string          `json:"law_numbers"`
	Citations       []LawCitation     `json:"citations"`
	Amounts         map[int64]float64 `json:"amounts,omitempty"`
	AverageAmount   float64           `json:"average_amount"`
	ReferenceCaseID int64             `json:"reference_case_id"`
}

// ValidationReport is the structure check of one document.
type ValidationReport struct {
	Line      int    `json:"line"`
	Valid     bool   `json:"valid"`
	Message   string `json:"message"`
	Marker    string `json:"marker,omitempty"`
	Violation string `json:"violation,omitempty"`
	Position  *int   `json:"position,omitempty"`
}

// ValidationResult summarizes a validation request.
type ValidationResult struct {
	Valid   int                `json:"valid"`
	Invalid int                `json:"invalid"`
	Reports []ValidationReport `json:"reports"`
}

// Document kinds accepted by Validate.
const (
	KindIndictment = "indictment"
	KindUserInput  = "user_input"
)

// CasesClient searches stored cases and validates documents.
type CasesClient struct {
	client *Client
}

// Search returns the raw nearest chunks for a query.
func (c *CasesClient) Search(ctx context.Context, req *SearchRequest) ([]SearchHit, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	var out struct {
		Hits []SearchHit `json:"hits"`
	}
	if err := c.client.post(ctx, "/api/v1/search", req, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

// Retrieve returns the hits with the laws, amounts and reference case that
// drafting would use.
func (c *CasesClient) Retrieve(ctx context.Context, req *SearchRequest) (*RetrievalResult, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	var out RetrievalResult
	if err := c.client.post(ctx, "/api/v1/retrieve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks document layout without storing anything. Report lines
// are the 1-based positions in texts.
func (c *CasesClient) Validate(ctx context.Context, kind string, texts []string) (*ValidationResult, error) {
	if kind != KindIndictment && kind != KindUserInput {
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
	var out ValidationResult
	body := map[string]interface{}{"kind": kind, "texts": texts}
	if err := c.client.post(ctx, "/api/v1/validate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
