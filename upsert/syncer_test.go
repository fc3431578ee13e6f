package upsert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drorzp/justel-pipeline/ai/mock"
	"github.com/drorzp/justel-pipeline/core"
	"github.com/drorzp/justel-pipeline/storage"
	"github.com/drorzp/justel-pipeline/transform"
)

func newTestSyncer(t *testing.T, st *stores, embedder *mock.MockEmbedder, opts ...Option) *Syncer {
	t.Helper()
	writer, err := NewVectorWriter(st.vectors, embedder)
	require.NoError(t, err)
	base := []Option{WithDocumentStore(st.docs), WithVectorWriter(writer), WithWorkers(2)}
	s, err := NewSyncer(st.repo, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func TestNewSyncer(t *testing.T) {
	_, err := NewSyncer(nil)
	assert.ErrorIs(t, err, ErrContentRepositoryRequired)

	st := newStores(t)
	_, err = NewSyncer(st.repo, WithWorkers(0))
	assert.ErrorIs(t, err, ErrInvalidWorkers)
}

func TestSyncer_NewRecordReachesEveryStore(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	embedder := &mock.MockEmbedder{Dimension: 8}
	s := newTestSyncer(t, st, embedder)

	rec := seed(t, st.repo, "2003022532", "1", plainText)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, 1, report.Stores[StoreDocument].Succeeded)
	assert.Equal(t, 1, report.Stores[StoreVector].Succeeded)
	assert.Zero(t, report.Failed())

	doc, err := st.docs.GetArticle(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, plainText, doc.Text)
	assert.Equal(t, rec.CurrentTextHash, doc.TextHash)

	law, err := st.docs.GetLaw(ctx, "2003022532")
	require.NoError(t, err)
	assert.Equal(t, 1, law.ArticleCount)

	point, err := st.vectors.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.CurrentTextHash, point.Payload.TextHash)
	assert.Len(t, point.Vector, 8)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestSyncer_UnchangedRecordIsNotEmbedded(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	seed(t, st.repo, "2003022532", "1", plainText)

	// first run converges the stores
	first := &mock.MockEmbedder{Dimension: 8}
	_, err := newTestSyncer(t, st, first).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.CallCount())

	// next run: snapshot at start, nothing changes
	embedder := &mock.MockEmbedder{Dimension: 8}
	transformer := &stubTransformer{fn: succeedWith(repairedText)}
	s := newTestSyncer(t, st, embedder, WithTransformer(transformer))
	_, err = s.BeginRun(ctx)
	require.NoError(t, err)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.New+report.Changed)
	assert.Zero(t, embedder.CallCount(), "unchanged records must not be embedded")
	assert.Zero(t, transformer.callCount(), "unchanged records must not be routed")
}

func TestSyncer_SmartUpsertSkipsMatchingHash(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "1", plainText)

	// the vector store already holds this text, but there is no snapshot,
	// so the record is in the change set as new
	require.NoError(t, st.vectors.Upsert(ctx, &core.VectorPoint{
		ID:      rec.ID,
		Vector:  []float32{1, 0},
		Payload: core.VectorPayload{TextHash: rec.CurrentTextHash},
	}))

	embedder := &mock.MockEmbedder{Dimension: 2}
	report, err := newTestSyncer(t, st, embedder).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Stores[StoreVector].Skipped)
	assert.Zero(t, embedder.CallCount())
}

func TestSyncer_RestoresRepairedTextFromSnapshot(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "12", annotatedText)

	// an earlier run repaired the text; the source hash still points at
	// the ingested markup
	repaired := *rec
	repaired.SetText(repairedText)
	require.NoError(t, st.repo.UpdateContentText(ctx, rec.ID, repaired.CurrentText, repaired.CurrentTextHash, repaired.UpdatedAt))
	markSynced(t, st.repo, rec)

	transformer := &stubTransformer{fn: succeedWith("<article>should not be used</article>")}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))
	_, err := s.BeginRun(ctx)
	require.NoError(t, err)

	// a forced re-ingest overwrites the repaired text with the same source
	seed(t, st.repo, "2003022532", "12", annotatedText)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Restored)
	assert.Zero(t, transformer.callCount())

	got, err := st.repo.GetContentByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repairedText, got.CurrentText)
	assert.Equal(t, core.Hash(repairedText), got.CurrentTextHash)

	doc, err := st.docs.GetArticle(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, repairedText, doc.Text)
}

func TestSyncer_TransformsChangedRecords(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "12", plainText)
	markSynced(t, st.repo, rec)

	transformer := &stubTransformer{fn: succeedWith(repairedText)}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))
	_, err := s.BeginRun(ctx)
	require.NoError(t, err)

	// new source markup with annotations arrives
	seed(t, st.repo, "2003022532", "12", annotatedText)

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Transformed)
	assert.Equal(t, 1, transformer.callCount())

	got, err := st.repo.GetContentByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repairedText, got.CurrentText)
	assert.Equal(t, core.Hash(annotatedText), got.SourceHash)

	point, err := st.vectors.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Hash(repairedText), point.Payload.TextHash)
}

func TestSyncer_FailedTransformLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "12", annotatedText)

	transformer := &stubTransformer{fn: func(transform.Request) transform.Result {
		return transform.Result{Status: transform.StatusValidationFailed, Errors: []string{"missing footnote ids: 1"}}
	}}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stores[StoreRelational].Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, StoreRelational, report.Errors[0].Store)

	got, err := st.repo.GetContentByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, annotatedText, got.CurrentText)

	// the ingested text still converges downstream
	doc, err := st.docs.GetArticle(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, annotatedText, doc.Text)
}

func TestSyncer_PlainRecordsAreNotRouted(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	seed(t, st.repo, "2003022532", "1", plainText)

	transformer := &stubTransformer{fn: succeedWith(repairedText)}
	report, err := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer)).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, transformer.callCount())
	assert.Equal(t, 1, report.Stores[StoreRelational].Skipped)
}

func TestSyncer_EmbeddingFailureIsCounted(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	seed(t, st.repo, "2003022532", "1", plainText)
	seed(t, st.repo, "2003022532", "2", plainText+" ")

	embedder := (&mock.MockEmbedder{Dimension: 4}).WithEmbedTextFunc(func(_ context.Context, text string) ([]float32, error) {
		return nil, assert.AnError
	})
	report, err := newTestSyncer(t, st, embedder).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stores[StoreVector].Failed)
	assert.Equal(t, 2, report.Stores[StoreDocument].Succeeded, "document store converges independently")
}

func TestSyncer_ChangeSet(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	a1 := seed(t, st.repo, "2003022532", "1", plainText)
	a2 := seed(t, st.repo, "2003022532", "2", plainText)
	markSynced(t, st.repo, a1, a2)

	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4})
	_, err := s.BeginRun(ctx)
	require.NoError(t, err)
	seed(t, st.repo, "2003022532", "2", annotatedText)
	seed(t, st.repo, "2003022532", "3", plainText)

	cs, err := s.ChangeSet(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cs.Len())
	assert.Equal(t, core.Changed, cs.Entries[0].Result)
	assert.Equal(t, "2", cs.Entries[0].Key.ArticleNumber)
	assert.Equal(t, core.New, cs.Entries[1].Result)
	assert.False(t, cs.Contains(core.RecordKey{DocumentNumber: "2003022532", ArticleNumber: "1"}))
}

func TestSyncer_WithoutDownstreamStores(t *testing.T) {
	st := newStores(t)
	seed(t, st.repo, "2003022532", "1", plainText)

	s, err := NewSyncer(st.repo)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)

	_, err = st.docs.GetArticle(context.Background(), core.RecordKey{DocumentNumber: "2003022532", ArticleNumber: "1"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncer_FailedVectorWriteIsRetriedNextRun(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "1", plainText)

	vectors := &flakyVectors{VectorStore: st.vectors, failing: true}
	writer, err := NewVectorWriter(vectors, &mock.MockEmbedder{Dimension: 4})
	require.NoError(t, err)
	s, err := NewSyncer(st.repo, WithDocumentStore(st.docs), WithVectorWriter(writer), WithWorkers(2))
	require.NoError(t, err)

	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	first, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stores[StoreVector].Failed)
	assert.Zero(t, first.Synced)

	// next run with a healthy store: the snapshot must not swallow the record
	vectors.setFailing(false)
	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.New+second.Changed+second.Pending)
	assert.Equal(t, 1, second.Stores[StoreVector].Succeeded)
	assert.Equal(t, 1, second.Synced)

	point, err := st.vectors.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.CurrentTextHash, point.Payload.TextHash)

	// and once converged the record drops out
	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	third, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, third.New+third.Changed+third.Pending)
}

func TestSyncer_IngestWithoutSyncIsPickedUpNextRun(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	embedder := &mock.MockEmbedder{Dimension: 4}
	s := newTestSyncer(t, st, embedder)

	_, err := s.BeginRun(ctx)
	require.NoError(t, err)
	// ingestion writes, then the process dies before Run
	rec := seed(t, st.repo, "2003022532", "1", plainText)

	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.Synced)

	doc, err := st.docs.GetArticle(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, plainText, doc.Text)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestSyncer_InterruptedRunKeepsRestoreBaseline(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "12", annotatedText)
	require.NoError(t, st.repo.UpdateContentText(ctx, rec.ID, repairedText, core.Hash(repairedText), rec.UpdatedAt))
	markSynced(t, st.repo, rec)

	transformer := &stubTransformer{fn: succeedWith("<article>should not be used</article>")}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))
	_, err := s.BeginRun(ctx)
	require.NoError(t, err)

	// a forced re-ingest overwrites the repaired text, then the run dies
	seed(t, st.repo, "2003022532", "12", annotatedText)

	// the next snapshot keeps the repaired baseline for the pending record
	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Restored)
	assert.Zero(t, transformer.callCount())

	got, err := st.repo.GetContentByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repairedText, got.CurrentText)
}

func TestSyncer_FailedTransformIsRetriedNextRun(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	rec := seed(t, st.repo, "2003022532", "12", annotatedText)

	transformer := &stubTransformer{fn: func(transform.Request) transform.Result {
		return transform.Result{Status: transform.StatusFailed, Errors: []string{"small: timeout", "large: timeout"}}
	}}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))

	_, err := s.BeginRun(ctx)
	require.NoError(t, err)
	first, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stores[StoreRelational].Failed)
	assert.Zero(t, first.Synced)

	transformer.fn = succeedWith(repairedText)
	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Transformed)
	assert.Equal(t, 2, transformer.callCount())

	got, err := st.repo.GetContentByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, repairedText, got.CurrentText)
}

func TestSyncer_CapacityFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st := newStores(t)
	seed(t, st.repo, "2003022532", "12", annotatedText)

	transformer := &stubTransformer{fn: func(transform.Request) transform.Result {
		return transform.Result{Status: transform.StatusFailed, Errors: []string{"too large"}, Capacity: true}
	}}
	s := newTestSyncer(t, st, &mock.MockEmbedder{Dimension: 4}, WithTransformer(transformer))

	first, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Stores[StoreRelational].Failed)
	assert.Equal(t, 1, first.Synced)

	_, err = s.BeginRun(ctx)
	require.NoError(t, err)
	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.New+second.Changed+second.Pending)
	assert.Equal(t, 1, transformer.callCount())
}
