/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is wrapped by Store.Get errors for missing blobs.
var ErrNotFound = errors.New("blob not found")

// Store persists named blobs. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// LocalStore keeps blobs as files in a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore returns a store writing to dir, creating it if necessary.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

func (l *LocalStore) String() string {
	return l.dir
}

// Put writes data to a temporary file and renames it into place, so readers never
// observe partial blobs.
func (l *LocalStore) Put(_ context.Context, name string, data []byte) error {
	tmp := filepath.Join(l.dir, fmt.Sprintf(".%v.tmp", uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(l.dir, name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads the blob name, ErrNotFound if there is none.
func (l *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%v: %w", name, ErrNotFound)
	}
	return data, err
}

// Close is a no-op.
func (l *LocalStore) Close() error {
	return nil
}

// S3Client is the subset of the S3 API used by S3Store. *s3.Client implements it.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps blobs as objects under a bucket prefix.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Store returns a store writing objects to bucket, with keys under prefix.
func NewS3Store(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3://%v/%v", s.bucket, s.prefix)
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads data as the object name under the prefix.
func (s *S3Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// Get downloads the object name under the prefix, ErrNotFound if there is none.
func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, fmt.Errorf("%v: %w", name, ErrNotFound)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Close is a no-op, the client is owned by the caller.
func (s *S3Store) Close() error {
	return nil
}

// NewS3ClientFromEnv configures an S3 client from AWS_REGION, AWS_ENDPOINT_URL,
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN. Requests are
// anonymous without an access key. A custom endpoint uses path style addressing.
func NewS3ClientFromEnv() *s3.Client {
	opts := s3.Options{
		Region:      os.Getenv("AWS_REGION"),
		Credentials: aws.AnonymousCredentials{},
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	return s3.New(opts)
}

// BadgerStore keeps blobs in a Badger key value database.
type BadgerStore struct {
	db   *badger.DB
	name string
}

// NewBadgerStore opens a database in dir, or an in memory database if dir is empty.
func NewBadgerStore(dir string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: orDefault(logger)})
	name := dir
	if dir == "" {
		opts = opts.WithInMemory(true)
		name = ":memory:"
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, name: name}, nil
}

func (b *BadgerStore) String() string {
	return "badger://" + b.name
}

// Put sets name to data in one transaction.
func (b *BadgerStore) Put(_ context.Context, name string, data []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), data)
	})
}

// Get reads name, ErrNotFound if it is unset.
func (b *BadgerStore) Get(_ context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%v: %w", name, ErrNotFound)
	}
	return data, err
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// badgerLogger forwards Badger's messages to slog, demoting its info chatter to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// OpenStore opens the store named by uri:
//
//	dir, file://dir      LocalStore
//	s3://bucket/prefix   S3Store configured from the environment
//	badger://dir         BadgerStore
//	badger://:memory:    in memory BadgerStore
func OpenStore(uri string, logger *slog.Logger) (Store, error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return NewLocalStore(uri)
	}
	switch scheme {
	case "file":
		return NewLocalStore(rest)
	case "s3":
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%q has no bucket", uri)
		}
		return NewS3Store(NewS3ClientFromEnv(), u.Host, u.Path), nil
	case "badger":
		if rest == ":memory:" {
			rest = ""
		} else if rest == "" {
			return nil, fmt.Errorf("%q has no directory", uri)
		}
		return NewBadgerStore(rest, logger)
	}
	return nil, fmt.Errorf("unknown store scheme %q in %q", scheme, uri)
}
