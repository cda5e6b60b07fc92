package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/database"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// DefaultBatchSize 单条 INSERT 写入的最大行数
const DefaultBatchSize = 100

// recordRepository 记录仓储实现
type recordRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewRecordRepository 使用全局数据库连接创建记录仓储
func NewRecordRepository() RecordRepository {
	return NewRecordRepositoryWithDB(nil)
}

// NewRecordRepositoryWithDB 使用指定的数据库连接创建记录仓储
func NewRecordRepositoryWithDB(db *gorm.DB) RecordRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &recordRepository{db: db, batchSize: DefaultBatchSize}
}

// SaveRecords 在一个事务中分批写入，任何一行违反约束则整体回滚
func (r *recordRepository) SaveRecords(ctx context.Context, runID string, records []models.Record) (int, error) {
	if runID == "" {
		return 0, errors.New("run ID cannot be empty")
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]*models.ChunkRow, 0, len(records))
	for _, rec := range records {
		row, err := models.NewChunkRow(runID, rec)
		if err != nil {
			return 0, fmt.Errorf("failed to convert record %s/%d: %w", rec.ChapterID, rec.ChunkIndex, err)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, r.batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save records: %w", err)
	}
	return len(rows), nil
}

// ListByChapter 按运行与块序号排序返回章节记录
func (r *recordRepository) ListByChapter(ctx context.Context, chapterNumber int) ([]models.Record, error) {
	var rows []*models.ChunkRow
	err := r.db.WithContext(ctx).
		Where("chapter_number = ?", chapterNumber).
		Order("run_id, chunk_index").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows)
}

// ListByRun 返回某次运行的记录
func (r *recordRepository) ListByRun(ctx context.Context, runID string) ([]models.Record, error) {
	var rows []*models.ChunkRow
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("chapter_number, chunk_index").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows)
}

// CountByCategory 统计各分类的记录数
func (r *recordRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	var results []struct {
		Category string
		Total    int
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChunkRow{}).
		Select("category, COUNT(*) AS total").
		Group("category").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(results))
	for _, res := range results {
		counts[res.Category] = res.Total
	}
	return counts, nil
}

// Count 统计记录总数
func (r *recordRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ChunkRow{}).Count(&n).Error
	return n, err
}

// DeleteRun 删除某次运行写入的记录
func (r *recordRepository) DeleteRun(ctx context.Context, runID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&models.ChunkRow{})
	return res.RowsAffected, res.Error
}

func toRecords(rows []*models.ChunkRow) ([]models.Record, error) {
	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
