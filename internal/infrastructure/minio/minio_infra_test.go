package minio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

type fakeImageRepo struct {
	mu        sync.Mutex
	objects   map[string]*domain.Image
	deleted   []string
	failOn    string
	deleteErr int
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{objects: make(map[string]*domain.Image)}
}

func (f *fakeImageRepo) Upload(_ context.Context, image *domain.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOn != "" && string(image.Data) == f.failOn {
		return "", errors.New("s3 unavailable")
	}
	f.objects[image.ObjectKey] = image
	return image.ObjectKey, nil
}

func (f *fakeImageRepo) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr > 0 {
		f.deleteErr--
		return errors.New("temporary")
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeImageRepo) Get(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	img, ok := f.objects[key]
	if !ok {
		return nil, "", e.ErrNotFound
	}
	return img.Data, img.ContentType, nil
}

func (f *fakeImageRepo) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://minio.local/wardrobe/" + key + "?expires=" + expiry.String(), nil
}

func newTestInfra(repo usecase.ImageRepository) *MinioInfrastructure {
	m := NewMinioInfrastructure(repo, &cfg.MinIOCfg{
		BucketName:        "wardrobe",
		UploadImagesLimit: 2,
		PresignExpiry:     time.Minute,
	}, logger.NewNopLogger(), context.Background())
	m.cleanupBackoff = time.Millisecond
	return m
}

func TestUploadImages(t *testing.T) {
	repo := newFakeImageRepo()
	m := newTestInfra(repo)

	req := usecase.NewUploadImagesReq("u1/wardrobe", []usecase.WardrobeImage{
		{Data: []byte("a"), MimeType: "image/jpeg", Name: "a.jpg"},
		{Data: []byte("b"), MimeType: "image/png", Name: "b.png"},
		{Data: []byte("c"), MimeType: "image/webp", Name: "c.webp"},
	})

	res, err := m.UploadImages(context.Background(), req)
	if err != nil {
		t.Fatalf("UploadImages: %v", err)
	}
	if len(res.ImagesKeys) != 3 {
		t.Fatalf("keys = %v", res.ImagesKeys)
	}
	for _, key := range res.ImagesKeys {
		if !strings.HasPrefix(key, "u1/wardrobe/") {
			t.Errorf("key %s lost prefix", key)
		}
		img := repo.objects[key]
		if img == nil || img.Bucket != "wardrobe" {
			t.Errorf("object %s not stored in bucket", key)
		}
	}
}

func TestUploadImagesCleansUpOnFailure(t *testing.T) {
	repo := newFakeImageRepo()
	repo.failOn = "bad"
	m := newTestInfra(repo)

	req := usecase.NewUploadImagesReq("u1", []usecase.WardrobeImage{
		{Data: []byte("good"), MimeType: "image/jpeg", Name: "good.jpg"},
		{Data: []byte("bad"), MimeType: "image/jpeg", Name: "bad.jpg"},
	})

	if _, err := m.UploadImages(context.Background(), req); err == nil {
		t.Fatal("expected error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitForCleanup(ctx); err != nil {
		t.Fatal(err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.objects) != 0 {
		t.Errorf("uploaded objects left behind: %d", len(repo.objects))
	}
}

func TestUploadImagesRejectsUnsupportedMIME(t *testing.T) {
	m := newTestInfra(newFakeImageRepo())

	req := usecase.NewUploadImagesReq("u1", []usecase.WardrobeImage{
		{Data: []byte("x"), MimeType: "image/gif", Name: "x.gif"},
	})
	_, err := m.UploadImages(context.Background(), req)
	if !errors.Is(err, e.ErrUnsupportedMediaType) {
		t.Fatalf("err = %v, want ErrUnsupportedMediaType", err)
	}
}

func TestCleanupRetriesDelete(t *testing.T) {
	repo := newFakeImageRepo()
	repo.deleteErr = 2
	m := newTestInfra(repo)

	m.CleanupImages([]string{"k1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitForCleanup(ctx); err != nil {
		t.Fatal(err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.deleted) != 1 || repo.deleted[0] != "k1" {
		t.Errorf("deleted = %v", repo.deleted)
	}
}

func TestDownloadImage(t *testing.T) {
	repo := newFakeImageRepo()
	repo.objects["u1/x.png"] = domain.NewImage("wardrobe", "u1/x.png", []byte("png"), "")
	m := newTestInfra(repo)

	data, mime, err := m.DownloadImage(context.Background(), "u1/x.png")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png" || mime != "image/png" {
		t.Errorf("got %q %s", data, mime)
	}

	if _, _, err := m.DownloadImage(context.Background(), "missing"); !errors.Is(err, e.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPresignedURLUsesConfiguredExpiry(t *testing.T) {
	m := newTestInfra(newFakeImageRepo())

	url, err := m.PresignedURL(context.Background(), "u1/x.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "expires=1m0s") {
		t.Errorf("url = %s", url)
	}
}
