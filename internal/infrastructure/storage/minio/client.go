package minio

import (
	"context"
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/TrafficLaw-RAG/internal/config"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TrafficLaw-RAG/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TrafficLaw-RAG/pkg/errors"
)

// ObjectAPI is the subset of the MinIO client the archive uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	// OpenObject returns a reader for an existing object. A missing key
	// fails here rather than on the first Read.
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

type minioAPI struct {
	*minio.Client
}

func (a minioAPI) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	obj, err := a.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeDraftNotFound, "object not found")
	ErrClientClosed   = errors.New(errors.ErrCodeObjectStorageError, "minio client is closed")
)

// Client binds a MinIO connection to the draft archive bucket.
type Client struct {
	api     ObjectAPI
	bucket  string
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	closed  atomic.Bool
}

// NewClient connects to MinIO and creates the bucket when it is missing.
func NewClient(cfg config.MinIOConfig, log logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStorageError, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newClient(minioAPI{Client: mc}, cfg.Bucket, log, metrics)
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

func newClient(api ObjectAPI, bucket string, log logging.Logger, metrics *prometheus.AppMetrics) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{api: api, bucket: bucket, logger: log, metrics: metrics}
}

func (c *Client) Bucket() string { return c.bucket }

// EnsureBucket creates the archive bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStorageError, "failed to connect to minio")
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, errors.ErrCodeObjectStorageError, "failed to create bucket %s", c.bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.bucket))
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err == nil && !exists {
		err = errors.Newf(errors.ErrCodeObjectStorageError, "bucket %s missing", c.bucket)
	}
	c.metrics.SetHealth("minio", err == nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStorageError, "minio health check failed")
	}
	return nil
}

// Close marks the client unusable. minio-go holds no connection to release.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
