package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "bigvul/42/graph.json", Key("bigvul", 42, "graph.json"))
	assert.Equal(t, "bigvul/42/manifest.json", ManifestKey("bigvul", 42))
}

func TestValidateKey(t *testing.T) {
	valid := []string{"a", "g/1/out.json", "g/1/nested/file.bin"}
	for _, k := range valid {
		assert.NoError(t, ValidateKey(k), k)
	}

	invalid := []string{"", "  ", "/abs", "a/../b", "..", "a//b", "a/./b", `a\b`, "a/"}
	for _, k := range invalid {
		assert.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
}

// storeContract exercises the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "g/1/out.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, "g/1/out.json")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "g/1/out.json", []byte(`{"n":1}`)))
	require.NoError(t, s.Put(ctx, "g/1/manifest.json", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "g/2/out.json", []byte(`{"n":2}`)))
	require.NoError(t, s.Put(ctx, "h/1/out.json", []byte(`{"n":3}`)))

	ok, err = s.Exists(ctx, "g/1/out.json")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Get(ctx, "g/1/out.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))

	require.NoError(t, s.Put(ctx, "g/1/out.json", []byte(`{"n":10}`)))
	data, err = s.Get(ctx, "g/1/out.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":10}`, string(data))

	keys, err := s.List(ctx, "g/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g/1/manifest.json", "g/1/out.json"}, keys)

	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	keys, err = s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.ErrorIs(t, s.Put(ctx, "../escape", nil), ErrInvalidKey)
	_, err = s.Get(ctx, "")
	require.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Root())

	storeContract(t, s)

	_, statErr := os.Stat(filepath.Join(dir, "g", "1", "out.json"))
	require.NoError(t, statErr)
}

func TestFileStoreRequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestFileStoreListSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "g/1/a.json", []byte("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g", "1", "b.json.123.tmp"), []byte("partial"), 0o600))

	keys, err := s.List(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"g/1/a.json"}, keys)
}

func TestFileStoreConcurrentPut(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put(context.Background(), "g/1/out.json", []byte("same")))
		}()
	}
	wg.Wait()

	data, err := s.Get(context.Background(), "g/1/out.json")
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))
}

// countingStore counts calls to Exists on the wrapped store.
type countingStore struct {
	Store
	mu     sync.Mutex
	exists int
}

func (c *countingStore) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	c.exists++
	c.mu.Unlock()
	return c.Store.Exists(ctx, key)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore()}
	c, err := NewCached(inner, 2)
	require.NoError(t, err)

	ok, err := c.Exists(ctx, "g/1/manifest.json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Exists(ctx, "g/1/manifest.json")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, inner.exists, "negative answers are not cached")

	require.NoError(t, c.Put(ctx, "g/1/manifest.json", []byte("{}")))
	ok, err = c.Exists(ctx, "g/1/manifest.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, inner.exists, "put primes the cache")

	require.NoError(t, inner.Store.Put(ctx, "g/2/manifest.json", []byte("{}")))
	ok, err = c.Exists(ctx, "g/2/manifest.json")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Exists(ctx, "g/2/manifest.json")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, inner.exists)
	assert.Equal(t, 2, c.Cached())

	data, err := c.Get(ctx, "g/2/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestManifestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m := Manifest{
		ID:        7,
		Group:     "bigvul",
		RunID:     "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Files:     []ManifestFile{{Name: "graph.json", Key: Key("bigvul", 7, "graph.json"), Bytes: 12}},
		Bytes:     12,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, WriteManifest(ctx, s, m))

	ok, err := s.Exists(ctx, "bigvul/7/manifest.json")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ReadManifest(ctx, s, "bigvul", 7)
	require.NoError(t, err)
	assert.Equal(t, m, *got)

	_, err = ReadManifest(ctx, s, "bigvul", 8)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	s, err = Open(ctx, Options{Backend: BackendFile, Dir: t.TempDir(), CacheSize: -1})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Options{Backend: "ftp"})
	require.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendS3})
	require.Error(t, err)
}

// fakeS3 answers HEAD requests for one bucket. Every object is missing.
type fakeS3 struct {
	bucketStatus int
	bucketHeads  atomic.Int32
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	if r.Method != http.MethodHead {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	if !strings.Contains(path, "/") {
		f.bucketHeads.Add(1)
		w.WriteHeader(f.bucketStatus)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func newFakeS3(t *testing.T, bucketStatus int) (*fakeS3, S3Config) {
	t.Helper()
	fake := &fakeS3{bucketStatus: bucketStatus}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "graphs",
		AccessKey: "access",
		SecretKey: "secret",
	}
}

func TestS3Store_BucketCheckRetriesAfterFailure(t *testing.T) {
	fake, cfg := newFakeS3(t, http.StatusOK)
	s, err := NewS3Store(cfg)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Exists(cancelled, "bigvul/1/graph.json")
	require.Error(t, err)

	ok, err := s.Exists(context.Background(), "bigvul/1/graph.json")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(context.Background(), "bigvul/2/graph.json")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), fake.bucketHeads.Load(), "a successful check is remembered")
}

func TestOpen_S3FailsFastOnUnreachableBucket(t *testing.T) {
	fake, cfg := newFakeS3(t, http.StatusForbidden)

	_, err := Open(context.Background(), Options{Backend: BackendS3, S3: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure bucket graphs")
	assert.GreaterOrEqual(t, fake.bucketHeads.Load(), int32(1))
}

func TestOpen_S3ReachableBucket(t *testing.T) {
	_, cfg := newFakeS3(t, http.StatusOK)

	s, err := Open(context.Background(), Options{Backend: BackendS3, S3: cfg})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)
}

func TestNewS3StoreValidation(t *testing.T) {
	_, err := NewS3Store(S3Config{Bucket: "b"})
	require.Error(t, err)

	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	require.Error(t, err)

	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "only"})
	require.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", Bucket: "b", Prefix: "/runs/", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "runs/g/1/out.json", s.objectKey("g/1/out.json"))
	assert.Equal(t, "g/1/out.json", s.stripPrefix("runs/g/1/out.json"))
	assert.Equal(t, defaultS3Region, s.region)
}
