// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/tabumip/pkg/mip/solver"
)

// SolveJobStatus 求解任务的生命周期状态
type SolveJobStatus string

const (
	SolveJobQueued    SolveJobStatus = "queued"
	SolveJobRunning   SolveJobStatus = "running"
	SolveJobSucceeded SolveJobStatus = "succeeded"
	SolveJobFailed    SolveJobStatus = "failed"
)

// SolveJob 一次提交的求解任务：输入的 Options、运行结果与归属租户
type SolveJob struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Status    SolveJobStatus  `json:"status"`
	Options   solver.Options  `json:"options"`
	Result    *solver.Result  `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SolveJobRepository 求解任务仓储
type SolveJobRepository struct {
	db DB
}

// NewSolveJobRepository 创建求解任务仓储
func NewSolveJobRepository(db DB) *SolveJobRepository {
	return &SolveJobRepository{db: db}
}

// Create 创建求解任务记录（提交阶段调用，此时结果尚未产生）
func (r *SolveJobRepository) Create(ctx context.Context, job *SolveJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("序列化求解选项失败: %w", err)
	}

	query := `
		INSERT INTO solve_jobs (
			id, tenant_id, status, options, result, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.TenantID, job.Status, optionsJSON, nil, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建求解任务失败: %w", err)
	}

	return nil
}

// UpdateResult 写回求解结果并推进状态（求解结束后调用）
func (r *SolveJobRepository) UpdateResult(ctx context.Context, id uuid.UUID, status SolveJobStatus, result *solver.Result, solveErr string) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("序列化求解结果失败: %w", err)
		}
	}

	query := `
		UPDATE solve_jobs SET status = $2, result = $3, error = $4, updated_at = $5
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, status, resultJSON, solveErr, time.Now())
	if err != nil {
		return fmt.Errorf("更新求解任务失败: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("求解任务不存在")
	}

	return nil
}

// GetByID 根据ID获取求解任务
func (r *SolveJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*SolveJob, error) {
	query := `
		SELECT id, tenant_id, status, options, result, error, created_at, updated_at
		FROM solve_jobs
		WHERE id = $1
	`

	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

// Delete 删除求解任务记录
func (r *SolveJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM solve_jobs WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("删除求解任务失败: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("求解任务不存在")
	}

	return nil
}

// List 按租户与状态查询求解任务列表
func (r *SolveJobRepository) List(ctx context.Context, filter ListFilter) ([]*SolveJob, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "1=1")

	if tenantID, ok := filter.Extra["tenant_id"].(string); ok && tenantID != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIndex))
		args = append(args, tenantID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM solve_jobs WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, status, options, result, error, created_at, updated_at
		FROM solve_jobs
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var jobs []*SolveJob
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}

	return jobs, total, nil
}

func (r *SolveJobRepository) scanJob(row *sql.Row) (*SolveJob, error) {
	job := &SolveJob{}
	var optionsJSON, resultJSON []byte

	err := row.Scan(&job.ID, &job.TenantID, &job.Status, &optionsJSON, &resultJSON, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描求解任务失败: %w", err)
	}

	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		return nil, fmt.Errorf("反序列化求解选项失败: %w", err)
	}
	if len(resultJSON) > 0 {
		job.Result = &solver.Result{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("反序列化求解结果失败: %w", err)
		}
	}

	return job, nil
}

func (r *SolveJobRepository) scanJobRow(rows *sql.Rows) (*SolveJob, error) {
	job := &SolveJob{}
	var optionsJSON, resultJSON []byte

	err := rows.Scan(&job.ID, &job.TenantID, &job.Status, &optionsJSON, &resultJSON, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("扫描求解任务失败: %w", err)
	}

	if err := json.Unmarshal(optionsJSON, &job.Options); err != nil {
		return nil, fmt.Errorf("反序列化求解选项失败: %w", err)
	}
	if len(resultJSON) > 0 {
		job.Result = &solver.Result{}
		if err := json.Unmarshal(resultJSON, job.Result); err != nil {
			return nil, fmt.Errorf("反序列化求解结果失败: %w", err)
		}
	}

	return job, nil
}
