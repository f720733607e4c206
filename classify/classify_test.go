package classify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/medingest/ai"
	"github.com/poiesic/medingest/ai/mock"
	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/storage"
	"github.com/poiesic/medingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewKeywordClassifier(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		record core.Record
		want   []string
	}{
		{
			name:   "mesh terms",
			record: core.Record{Title: "Outcomes study", MeSHTerms: []string{"Myocardial Infarction", "Diabetes Mellitus, Type 2"}},
			want:   []string{"cardiology", "endocrinology"},
		},
		{
			name:   "title word prefix",
			record: core.Record{Title: "Tumours in children"},
			want:   []string{"oncology", "pediatrics"},
		},
		{
			name:   "no match inside words",
			record: core.Record{Title: "Advances in imaging"},
			want:   nil,
		},
		{
			name:   "hint first",
			record: core.Record{Title: "Lung function", SubjectHint: "geriatrics"},
			want:   []string{"geriatrics", "pulmonology"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ctx, &tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordClassifier_CustomKeywords(t *testing.T) {
	c := NewKeywordClassifier(map[string][]string{"Infectious Disease": {"sepsis"}})
	got, err := c.Classify(context.Background(), &core.Record{Title: "Septic shock and Sepsis"})
	require.NoError(t, err)
	assert.Equal(t, []string{"infectious_disease"}, got)
}

func TestSafe_NormalizesAndDedupes(t *testing.T) {
	s := NewSafe(ClassifierFunc(func(context.Context, *core.Record) ([]string, error) {
		return []string{" Cardiology ", "cardiology", "Internal Medicine", "!!"}, nil
	}), nil)

	res := s.Classify(context.Background(), &core.Record{Title: "x"})
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"cardiology", "internal_medicine"}, res.Subjects)
}

func TestSafe_EmptyIsUnclassified(t *testing.T) {
	s := NewSafe(NewKeywordClassifier(nil), nil)
	res := s.Classify(context.Background(), &core.Record{Title: "Advances in imaging"})
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{core.UnclassifiedPartition}, res.Subjects)
}

func TestSafe_ErrorIsUnclassified(t *testing.T) {
	s := NewSafe(ClassifierFunc(func(context.Context, *core.Record) ([]string, error) {
		return nil, assert.AnError
	}), nil)

	res := s.Classify(context.Background(), &core.Record{Title: "x"})
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{core.UnclassifiedPartition}, res.Subjects)
	assert.True(t, errors.Is(res.Err, core.ErrClassification))
}

func TestLLMClassifier_AppendsHint(t *testing.T) {
	model := mock.NewMockSubjectClassifier().WithClassifySubjectsFunc(
		func(_ context.Context, a ai.ArticleText) ([]ai.SubjectLabel, error) {
			assert.Equal(t, "Statins", a.Title)
			return []ai.SubjectLabel{{Name: "cardiology", Confidence: 0.9}}, nil
		})
	c := NewLLMClassifier(model)

	got, err := c.Classify(context.Background(), &core.Record{Title: "Statins", SubjectHint: "geriatrics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cardiology", "geriatrics"}, got)
	assert.Equal(t, 1, model.CallCount())
}

func TestArena_ConcurrentEnsureCreatesOnce(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	const callers = 50
	arenas := []*Arena{NewArena(store.Partitions, nil), NewArena(store.Partitions, nil)}

	var wg sync.WaitGroup
	var failures atomic.Int32
	ids := make([]core.ID, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := arenas[i%2].EnsurePartition(context.Background(), "Infectious Disease")
			if err != nil {
				failures.Add(1)
				return
			}
			ids[i] = p.Id
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(1), arenas[0].Created()+arenas[1].Created())

	parts, err := store.Partitions.ListPartitions(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "infectious_disease", parts[0].Name)
}

// slowPartitions blocks creation until release is closed or ctx ends.
type slowPartitions struct {
	storage.PartitionRepository
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *slowPartitions) CreatePartitionIfAbsent(ctx context.Context, name string) (*core.Partition, bool, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	select {
	case <-s.release:
		return &core.Partition{Id: core.IDFromContent(name), Name: name}, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func TestArena_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	repo := &slowPartitions{entered: make(chan struct{}), release: make(chan struct{})}
	a := NewArena(repo, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.EnsurePartition(firstCtx, "oncology")
		firstErr <- err
	}()
	<-repo.entered

	type result struct {
		p   *core.Partition
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := a.EnsurePartition(context.Background(), "oncology")
		second <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(repo.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "oncology", res.p.Name)
	assert.Equal(t, int32(1), repo.calls.Load())
	assert.Equal(t, int64(1), a.Created())
}

func TestArena_InvalidName(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = NewArena(store.Partitions, nil).EnsurePartition(context.Background(), "  ")
	assert.ErrorIs(t, err, storage.ErrInvalidPartitionName)
}

func TestArena_EnsureAll(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	a := NewArena(store.Partitions, nil)
	require.NoError(t, a.EnsureAll(context.Background(), []string{"oncology", "Oncology", "neurology"}))
	assert.Equal(t, int64(2), a.Created())
}
