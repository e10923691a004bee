package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"inspectcore/internal/blob/core"
)

type object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeS3 keeps objects in a map and pages listings one object at a time.
type fakeS3 struct {
	objects  map[string]object
	listErr  error
	putCalls int
}

func newFake() *fakeS3 { return &fakeS3{objects: map[string]object{}} }

var stamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(o.body))),
		ContentType:   aws.String(o.contentType),
		ETag:          aws.String(`"etag"`),
		Metadata:      o.metadata,
		LastModified:  aws.Time(stamp),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = object{body: body, contentType: aws.ToString(in.ContentType), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(o.body)),
		ContentLength: aws.Int64(int64(len(o.body))),
		ContentType:   aws.String(o.contentType),
		LastModified:  aws.Time(stamp),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	start := 0
	if in.ContinuationToken != nil {
		_, _ = fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(keys) {
		k := keys[start]
		out.Contents = []types.Object{{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k].body))), LastModified: aws.Time(stamp)}}
		if start+1 < len(keys) {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(fmt.Sprint(start + 1))
		}
	}
	return out, nil
}

func TestS3StoreLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	s := NewWithClient(fake, "archive")
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	info, err := s.Put(ctx, "protocols/o1/0.json", strings.NewReader(`{"x":1}`), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"order": "o1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag != "etag" || info.ContentType != "application/json" || info.Metadata["order"] != "o1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "protocols/o1/0.json", strings.NewReader("{}"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if fake.putCalls != 1 {
		t.Fatalf("existing key must not be uploaded again")
	}
	_, rc, err := s.Get(ctx, "protocols/o1/0.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"x":1}` {
		t.Fatalf("unexpected body %q", body)
	}
	for _, key := range []string{"protocols/o1/1.json", "protocols/o1/2.json", "protocols/o2/0.json"} {
		if _, err := s.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := s.List(ctx, "protocols/o1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "protocols/o1/0.json" || list[2].Key != "protocols/o1/2.json" {
		t.Fatalf("expected paged, sorted listing, got %+v", list)
	}
	if ok, err := s.Delete(ctx, "protocols/o2/0.json"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, "protocols/o2/0.json"); ok || err != nil {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, _, err := s.Get(ctx, "protocols/o2/0.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3StoreListError(t *testing.T) {
	fake := newFake()
	fake.listErr = errors.New("access denied")
	s := NewWithClient(fake, "archive")
	if _, err := s.List(context.Background(), "protocols/"); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "AKIA", SecretAccessKey: "SECRET"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.client.(*s3.Client); !ok {
		t.Fatalf("expected sdk client, got %T", s.client)
	}
}
