package client

import (
	"context"
	"fmt"
	"strings"
)

// LawyerInputResult reports a stored lawyer input case.
type LawyerInputResult struct {
	CaseID   int64          `json:"case_id"`
	CaseType string         `json:"case_type"`
	Chunks   int            `json:"chunks"`
	ByType   map[string]int `json:"by_type"`
}

// IndictmentRequest is one historical indictment with its cited laws.
type IndictmentRequest struct {
	Text     string `json:"text"`
	UsedLaws string `json:"used_laws,omitempty"`
}

// IndictmentResult reports a stored indictment.
type IndictmentResult struct {
	CaseID     int64    `json:"case_id"`
	LawNumbers []string `json:"law_numbers"`
}

// BatchItem is the outcome of one indictment of a batch. Error is set when
// the item was rejected.
type BatchItem struct {
	Index  int               `json:"index"`
	Result *IndictmentResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Accepted acknowledges a queued ingest request.
type Accepted struct {
	RequestID string `json:"request_id"`
	EventID   string `json:"event_id"`
}

// IngestClient loads cases and statutes.
type IngestClient struct {
	client *Client
}

const ingestPath = "/api/v1/ingest"

func asyncPath(path string) string {
	return path + "?async=true"
}

// LawyerInput stores a lawyer's structured case description.
func (c *IngestClient) LawyerInput(ctx context.Context, text string) (*LawyerInputResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	var out LawyerInputResult
	if err := c.client.post(ctx, ingestPath+"/lawyer-inputs", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Indictment stores one historical indictment.
func (c *IngestClient) Indictment(ctx context.Context, req IndictmentRequest) (*IndictmentResult, error) {
	var out IndictmentResult
	if err := c.client.post(ctx, ingestPath+"/indictments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Indictments stores a batch. Malformed items come back with Error set.
func (c *IngestClient) Indictments(ctx context.Context, reqs []IndictmentRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("at least one indictment is required")
	}
	var out struct {
		Items []BatchItem `json:"items"`
	}
	if err := c.client.post(ctx, ingestPath+"/indictments/batch", map[string]interface{}{"items": reqs}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Laws stores a statute corpus and returns the number of articles.
func (c *IngestClient) Laws(ctx context.Context, corpus string) (int, error) {
	if strings.TrimSpace(corpus) == "" {
		return 0, fmt.Errorf("corpus is required")
	}
	var out struct {
		Laws int `json:"laws"`
	}
	if err := c.client.post(ctx, ingestPath+"/laws", map[string]string{"corpus": corpus}, &out); err != nil {
		return 0, err
	}
	return out.Laws, nil
}

// QueueLawyerInput hands a lawyer input to the ingestion worker. Servers
// without a broker process the request inline and answer with the case;
// Accepted is then nil.
func (c *IngestClient) QueueLawyerInput(ctx context.Context, text string) (*Accepted, error) {
	return c.queue(ctx, asyncPath(ingestPath+"/lawyer-inputs"), map[string]string{"text": text})
}

// QueueIndictment hands an indictment to the ingestion worker.
func (c *IngestClient) QueueIndictment(ctx context.Context, req IndictmentRequest) (*Accepted, error) {
	return c.queue(ctx, asyncPath(ingestPath+"/indictments"), req)
}

// QueueLaws hands a statute corpus to the ingestion worker.
func (c *IngestClient) QueueLaws(ctx context.Context, corpus string) (*Accepted, error) {
	return c.queue(ctx, asyncPath(ingestPath+"/laws"), map[string]string{"corpus": corpus})
}

func (c *IngestClient) queue(ctx context.Context, path string, body interface{}) (*Accepted, error) {
	var out Accepted
	if err := c.client.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if out.EventID == "" {
		return nil, nil
	}
	return &out, nil
}
