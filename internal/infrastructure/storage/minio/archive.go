package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

const (
	draftPrefix   = "drafts"
	draftObject   = "draft.txt"
	traceObject   = "trace.json"
	defaultExpiry = 15 * time.Minute
)

// ArchiveRef locates an archived draft run.
type ArchiveRef struct {
	Bucket   string `json:"bucket"`
	DraftKey string `json:"draft_key"`
	TraceKey string `json:"trace_key"`
	Size     int64  `json:"size"`
}

// ArchivedRun summarizes one run found by List.
type ArchivedRun struct {
	RunID        string    `json:"run_id"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// DraftArchive stores generated indictments and their stage traces.
// Objects live under drafts/<run id>/.
type DraftArchive struct {
	client *Client
	logger logging.Logger
}

func NewDraftArchive(client *Client, log logging.Logger) *DraftArchive {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DraftArchive{client: client, logger: log}
}

func DraftKey(runID string) string { return path.Join(draftPrefix, runID, draftObject) }
func TraceKey(runID string) string { return path.Join(draftPrefix, runID, traceObject) }

// Put writes the draft text and the JSON encoded trace for runID.
func (a *DraftArchive) Put(ctx context.Context, runID, draft string, trace any) (*ArchiveRef, error) {
	if runID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "run id required")
	}
	if a.client.closed.Load() {
		return nil, ErrClientClosed
	}
	traceJSON, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode draft trace")
	}

	ref := &ArchiveRef{Bucket: a.client.bucket, DraftKey: DraftKey(runID), TraceKey: TraceKey(runID)}
	n, err := a.put(ctx, ref.DraftKey, []byte(draft), "text/plain; charset=utf-8", runID)
	if err != nil {
		return nil, err
	}
	ref.Size = n
	if _, err := a.put(ctx, ref.TraceKey, traceJSON, "application/json", runID); err != nil {
		return nil, err
	}

	a.logger.Info("Draft archived",
		logging.RunID(runID),
		logging.String("bucket", ref.Bucket),
		logging.Int64("size", ref.Size))
	return ref, nil
}

func (a *DraftArchive) put(ctx context.Context, key string, data []byte, contentType, runID string) (int64, error) {
	start := time.Now()
	info, err := a.client.api.PutObject(ctx, a.client.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"run-id": runID},
	})
	a.client.metrics.RecordStoreOp("minio", "put", time.Since(start), err)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrCodeObjectStorageError, "failed to upload %s", key)
	}
	return info.Size, nil
}

// GetDraft returns the archived draft text.
func (a *DraftArchive) GetDraft(ctx context.Context, runID string) (string, error) {
	data, err := a.read(ctx, DraftKey(runID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetTrace decodes the archived trace into dest.
func (a *DraftArchive) GetTrace(ctx context.Context, runID string, dest any) error {
	data, err := a.read(ctx, TraceKey(runID))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode draft trace")
	}
	return nil
}

func (a *DraftArchive) read(ctx context.Context, key string) ([]byte, error) {
	if a.client.closed.Load() {
		return nil, ErrClientClosed
	}
	start := time.Now()
	rc, err := a.client.api.OpenObject(ctx, a.client.bucket, key)
	if err == nil {
		var data []byte
		data, err = io.ReadAll(rc)
		rc.Close()
		if err == nil {
			a.client.metrics.RecordStoreOp("minio", "get", time.Since(start), nil)
			return data, nil
		}
	}
	if isNoSuchKey(err) {
		a.client.metrics.RecordStoreOp("minio", "get", time.Since(start), nil)
		return nil, ErrObjectNotFound.WithDetail(key)
	}
	a.client.metrics.RecordStoreOp("minio", "get", time.Since(start), err)
	return nil, errors.Wrapf(err, errors.ErrCodeObjectStorageError, "failed to download %s", key)
}

// Exists reports whether a draft was archived for runID.
func (a *DraftArchive) Exists(ctx context.Context, runID string) (bool, error) {
	_, err := a.client.api.StatObject(ctx, a.client.bucket, DraftKey(runID), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeObjectStorageError, "failed to stat draft")
}

// Delete removes both objects of a run. Missing objects are not an error.
func (a *DraftArchive) Delete(ctx context.Context, runID string) error {
	for _, key := range []string{DraftKey(runID), TraceKey(runID)} {
		if err := a.client.api.RemoveObject(ctx, a.client.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
			return errors.Wrapf(err, errors.ErrCodeObjectStorageError, "failed to remove %s", key)
		}
	}
	return nil
}

// List returns archived runs in lexical key order. limit <= 0 means no limit.
func (a *DraftArchive) List(ctx context.Context, limit int) ([]ArchivedRun, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := a.client.api.ListObjects(ctx, a.client.bucket, minio.ListObjectsOptions{
		Prefix:    draftPrefix + "/",
		Recursive: true,
	})

	var runs []ArchivedRun
	for obj := range objects {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeObjectStorageError, "failed to list drafts")
		}
		if !strings.HasSuffix(obj.Key, "/"+draftObject) {
			continue
		}
		runs = append(runs, ArchivedRun{
			RunID:        path.Base(path.Dir(obj.Key)),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	return runs, nil
}

// PresignedDraftURL returns a time-limited download link for the draft.
func (a *DraftArchive) PresignedDraftURL(ctx context.Context, runID string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	u, err := a.client.api.PresignedGetObject(ctx, a.client.bucket, DraftKey(runID), expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeObjectStorageError, "failed to presign draft url")
	}
	return u.String(), nil
}
