package repository

import (
	"context"

	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
)

// RecordRepository 数据集记录仓储接口
// 负责将记录导入数据库并提供简单查询
type RecordRepository interface {
	// SaveRecords 批量写入一次运行的记录，返回写入条数
	SaveRecords(ctx context.Context, runID string, records []models.Record) (int, error)

	// ListByChapter 按块序号返回某章节的记录
	ListByChapter(ctx context.Context, chapterNumber int) ([]models.Record, error)

	// ListByRun 返回某次运行写入的全部记录
	ListByRun(ctx context.Context, runID string) ([]models.Record, error)

	// CountByCategory 统计各分类的记录数
	CountByCategory(ctx context.Context) (map[string]int, error)

	// Count 统计记录总数
	Count(ctx context.Context) (int64, error)

	// DeleteRun 删除某次运行写入的记录
	DeleteRun(ctx context.Context, runID string) (int64, error)
}
