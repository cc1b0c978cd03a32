package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
)

type memRepo struct {
	mu        sync.Mutex
	nextID    int64
	videos    map[int64]*entity.VideoRecord
	createErr error
	findErr   error
	markErr   error
	markCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{videos: make(map[int64]*entity.VideoRecord)}
}

func (r *memRepo) Create(_ context.Context, v *entity.VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	v.ID = r.nextID
	cp := *v
	r.videos[v.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	v, ok := r.videos[id]
	if !ok {
		return nil, entity.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memRepo) ListByOwner(_ context.Context, ownerID int64) ([]entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.VideoRecord{}
	for _, v := range r.videos {
		if v.OwnerID == ownerID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ListPublic(_ context.Context) ([]entity.VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.VideoRecord{}
	for _, v := range r.videos {
		if v.Votable() {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VotesCount > out[j].VotesCount })
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return entity.ErrVideoNotFound
	}
	if !v.CanDelete() {
		return entity.ErrVideoNotDeletable
	}
	delete(r.videos, id)
	return nil
}

func (r *memRepo) MarkProcessed(_ context.Context, id int64, key string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	if r.markErr != nil {
		return r.markErr
	}
	v, ok := r.videos[id]
	if !ok {
		return entity.ErrVideoNotFound
	}
	v.MarkProcessed(key, at)
	return nil
}

func (r *memRepo) get(id int64) *entity.VideoRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

func (r *memRepo) seed(v *entity.VideoRecord) *entity.VideoRecord {
	_ = r.Create(context.Background(), v)
	return r.get(v.ID)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	deletes []string
	failPut bool
	failGet bool
}

var _ port.BlobStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, localPath, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return false
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return false
	}
	s.objects[key] = data
	s.puts = append(s.puts, key)
	return true
}

func (s *memStore) Get(_ context.Context, key, localPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok || s.failGet {
		return false
	}
	return os.WriteFile(localPath, data, 0o644) == nil
}

func (s *memStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deletes = append(s.deletes, key)
	return true
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memStore) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []entity.ProcessingJob
	failSend bool
	batches  [][]entity.QueueMessage
	acked    []entity.QueueMessage
	receives int
	// onEmpty runs when the scripted batches are exhausted.
	onEmpty func()

	// receiveErr is returned once the scripted batches are exhausted.
	receiveErr error
}

var _ port.JobQueue = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(_ context.Context, job entity.ProcessingJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failSend {
		return false
	}
	q.enqueued = append(q.enqueued, job)
	return true
}

func (q *fakeQueue) Receive(_ context.Context, _ int, _ time.Duration) ([]entity.QueueMessage, error) {
	q.mu.Lock()
	q.receives++
	if len(q.batches) == 0 {
		onEmpty, err := q.onEmpty, q.receiveErr
		q.mu.Unlock()
		if onEmpty != nil {
			onEmpty()
		}
		return nil, err
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	q.mu.Unlock()
	return batch, nil
}

func (q *fakeQueue) Acknowledge(_ context.Context, msg entity.QueueMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msg)
	return true
}

type fakeInspector struct {
	info port.MediaInfo
}

func (f fakeInspector) Inspect(context.Context, string) port.MediaInfo { return f.info }

type fakeTransformer struct {
	err     error
	panics  bool
	calls   int
	workDir string
	input   port.TransformInput
}

func (f *fakeTransformer) Transform(_ context.Context, in port.TransformInput) (string, error) {
	f.calls++
	f.workDir = in.WorkDir
	f.input = in
	if f.panics {
		panic("nil pointer in filter graph")
	}
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(in.WorkDir, "out_processed.mp4")
	if err := os.WriteFile(out, []byte("processed"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type fakeDLQ struct {
	mu      sync.Mutex
	bodies  [][]byte
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bodies = append(d.bodies, msg)
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	videoIDs []int64
	err      error
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, videoID int64, _, _ string) error {
	n.videoIDs = append(n.videoIDs, videoID)
	return n.err
}

type fakeVotes struct {
	total    int
	castErr  error
	rankings []entity.RankingEntry
}

func (v *fakeVotes) CastVote(context.Context, int64, int64) (int, error) {
	return v.total, v.castErr
}

func (v *fakeVotes) Rankings(_ context.Context, skip, limit int) ([]entity.RankingEntry, error) {
	if skip >= len(v.rankings) {
		return []entity.RankingEntry{}, nil
	}
	end := skip + limit
	if end > len(v.rankings) {
		end = len(v.rankings)
	}
	return v.rankings[skip:end], nil
}

var errDatabaseDown = errors.New("connection refused")
