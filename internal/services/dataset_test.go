package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/document"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/embedding"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

const overviewChapter = `>> CHAPTER: Overview of Pediatrics <<
--- PAGE 1 ---
OVERVIEW OF PEDIATRICS

Pediatrics is concerned with the health of infants, children, and adolescents, their growth and development, and their opportunity to achieve full potential as adults. Clinical care must address the whole child within the family.

The mortality of children younger than 5 years has declined by 50% since 1990. Treatment of pneumonia and diarrhea with low cost therapy accounts for a large part of this change.

EPIDEMIOLOGY

Injury remains the leading cause of death after the first year of life. Screening programs identify developmental delay early, and prognosis improves when management begins before school age.

Poverty affects the health of 1 in 5 children. The risk of chronic disease increases with food insecurity, unstable housing, and limited access to preventive care.

TREATMENT

Management of common conditions follows evidence based guidelines. Amoxicillin 90 mg/kg/day remains the first line therapy for acute otitis media in most patients.

--- PAGE 2 ---
Follow up visits provide anticipatory guidance. Families receive counseling on nutrition, sleep, safety, and immunization at each well child visit.
`

const tinyChapter = `>> CHAPTER: Tiny Chapter <<
ab
`

func testTOC() []models.ChapterEntry {
	return []models.ChapterEntry{
		{ChapterNumber: 1, ChapterName: "Overview of Pediatrics", Page: 1},
		{ChapterNumber: 2, ChapterName: "Congenital Heart Disease"},
		{ChapterNumber: 3, ChapterName: "Tiny Chapter"},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestDatasetBuild(t *testing.T) {
	srv, err := NewDatasetService("Nelson Textbook of Pediatrics", WithLogger(quietLogger()))
	require.NoError(t, err)

	source := overviewChapter + tinyChapter
	result, err := srv.Build(context.Background(), source, testTOC())
	require.NoError(t, err)

	records := result.Records
	require.Len(t, records, 3)

	var joined strings.Builder
	for i, rec := range records {
		assert.Equal(t, "Nelson Textbook of Pediatrics", rec.BookTitle)
		assert.Equal(t, "NELSON-CH-0001", rec.ChapterID)
		assert.Equal(t, 1, rec.ChapterNumber)
		assert.Equal(t, "Overview of Pediatrics", rec.ChapterName)
		assert.Equal(t, i+1, rec.ChunkIndex)
		assert.Equal(t, "General Pediatrics", rec.Category)
		assert.NotEmpty(t, strings.TrimSpace(rec.Content))
		assert.LessOrEqual(t, utf8.RuneCountInString(rec.Summary), DefaultMaxSummaryChars)

		words := strings.Fields(rec.TopicName)
		assert.GreaterOrEqual(t, len(words), 1)
		assert.LessOrEqual(t, len(words), 5)

		// 清洗后不应残留标记
		assert.NotContains(t, rec.Content, "--- PAGE")
		assert.NotContains(t, rec.Content, ">> CHAPTER")
		joined.WriteString(rec.Content)
	}

	// 各块按顺序拼接覆盖整个清洗后的章节
	cleaned := document.NewCleaner(nil, 0.5).Clean(overviewChapter)
	assert.Equal(t, stripSpace(cleaned), stripSpace(joined.String()))
	assert.Equal(t, "Overview of Pediatrics", records[0].TopicName)

	report := result.Report
	assert.Equal(t, 3, report.ChaptersDeclared)
	assert.Equal(t, 1, report.ChaptersProcessed)
	assert.Equal(t, 3, report.RecordsEmitted)
	assert.Empty(t, report.Rejected)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, SkippedChapter{
		ChapterNumber: 2,
		ChapterName:   "Congenital Heart Disease",
		Stage:         StageSegmentation,
		Reason:        (&models.SegmentationError{ChapterNumber: 2, ChapterName: "Congenital Heart Disease"}).Error(),
	}, report.Skipped[0])
	assert.Equal(t, 3, report.Skipped[1].ChapterNumber)
	assert.Equal(t, StageChunking, report.Skipped[1].Stage)
	assert.Equal(t, map[string]int{"General Pediatrics": 3}, report.Categories)
	assert.NotContains(t, report.EmptyCategories, "General Pediatrics")
	assert.Contains(t, report.EmptyCategories, "Pulmonology")
	assert.False(t, report.Embedded)
}

func TestDatasetBuildDeterministic(t *testing.T) {
	srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()))
	require.NoError(t, err)

	first, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
	require.NoError(t, err)
	second, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.NotEqual(t, first.Report.RunID, second.Report.RunID)
}

func TestDatasetBuildHardFailures(t *testing.T) {
	srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = srv.Build(ctx, "", testTOC())
	assert.ErrorIs(t, err, models.ErrEmptySource)

	_, err = srv.Build(ctx, " \n\t ", testTOC())
	assert.ErrorIs(t, err, models.ErrEmptySource)

	_, err = srv.Build(ctx, overviewChapter, nil)
	assert.ErrorIs(t, err, models.ErrEmptyTOC)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = srv.Build(canceled, overviewChapter, testTOC())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDatasetOptions(t *testing.T) {
	srv, err := NewDatasetService("Harriet Lane Handbook",
		WithLogger(quietLogger()),
		WithIDPrefix("HLH"),
		WithMaxSummaryChars(120),
		WithMicroChunks(false),
		WithTables(false),
	)
	require.NoError(t, err)

	result, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
	require.NoError(t, err)
	require.NotEmpty(t, result.Records)
	for _, rec := range result.Records {
		assert.Equal(t, "HLH-CH-0001", rec.ChapterID)
		assert.LessOrEqual(t, utf8.RuneCountInString(rec.Summary), 120)
		assert.Nil(t, rec.MicroChunks)
		assert.Nil(t, rec.Tables)
	}

	_, err = NewDatasetService("Nelson", WithMaxSummaryChars(0))
	assert.Error(t, err)
}

// stubSplitter 返回预设的块，用于触发校验失败
type stubSplitter struct {
	chunks []models.Chunk
	err    error
}

func (s *stubSplitter) Split(int, string) ([]models.Chunk, error) { return s.chunks, s.err }
func (s *stubSplitter) MicroSplit(string) []string                { return nil }
func (s *stubSplitter) ChunkCount() int                           { return 3 }

func TestDatasetRejectsInvalidRecords(t *testing.T) {
	splitter := &stubSplitter{chunks: []models.Chunk{
		{Index: 1, Content: "Kawasaki disease is a vasculitis of childhood."},
		{Index: 4, Content: "Coronary aneurysms are the main complication."},
		{Index: 2, Content: "   "},
	}}
	srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()), WithSplitter(splitter))
	require.NoError(t, err)

	result, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Records[0].ChunkIndex)

	require.Len(t, result.Report.Rejected, 2)
	assert.Equal(t, 4, result.Report.Rejected[0].ChunkIndex)
	assert.Equal(t, "chunk_index", result.Report.Rejected[0].Field)
	assert.Equal(t, 2, result.Report.Rejected[1].ChunkIndex)
	assert.Equal(t, "content", result.Report.Rejected[1].Field)
}

func TestDatasetChapterFailureDoesNotAbort(t *testing.T) {
	splitter := &stubSplitter{err: &models.ChunkingError{ChapterNumber: 1, Reason: "chapter text is empty"}}
	srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()), WithSplitter(splitter))
	require.NoError(t, err)

	result, err := srv.Build(context.Background(), overviewChapter+tinyChapter, testTOC())
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	// 章节2定位失败，章节1和3切分失败
	assert.Len(t, result.Report.Skipped, 3)
}

type failingClient struct{}

func (failingClient) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}
func (failingClient) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}
func (failingClient) Name() string   { return "failing" }
func (failingClient) Dimension() int { return 0 }

func TestDatasetEmbedding(t *testing.T) {
	client, err := embedding.NewHashClient(embedding.Config{Dimensions: 8})
	require.NoError(t, err)
	enricher := NewEmbeddingEnricher(embedding.NewBatchProcessor(client, 4, 2), 0, quietLogger())

	srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()), WithEnricher(enricher))
	require.NoError(t, err)

	result, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
	require.NoError(t, err)
	assert.True(t, result.Report.Embedded)

	for _, rec := range result.Records {
		assert.Len(t, rec.ContentEmbedding, 8)
		assert.Len(t, rec.TopicEmbedding, 8)
		if rec.Summary != "" {
			assert.Len(t, rec.SummaryEmbedding, 8)
		}
	}

	t.Run("向量生成失败时保留记录", func(t *testing.T) {
		broken := NewEmbeddingEnricher(embedding.NewBatchProcessor(failingClient{}, 4, 1), 0, quietLogger())
		srv, err := NewDatasetService("Nelson", WithLogger(quietLogger()), WithEnricher(broken))
		require.NoError(t, err)

		result, err := srv.Build(context.Background(), overviewChapter, testTOC()[:1])
		require.NoError(t, err)
		assert.NotEmpty(t, result.Records)
		assert.False(t, result.Report.Embedded)
		assert.Contains(t, result.Report.EmbeddingError, "provider unavailable")
		for _, rec := range result.Records {
			assert.Nil(t, rec.ContentEmbedding)
		}
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo world", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}
