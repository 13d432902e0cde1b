package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	txStdLib "github.com/Thiht/transactor/stdlib"

	"github.com/quietly/quietly/internal/model"
)

// PostgresGoalRepo はPostgreSQLを使用した読書目標リポジトリ。
type PostgresGoalRepo struct {
	dbGetter txStdLib.DBGetter
}

// NewPostgresGoalRepo はPostgresGoalRepoを生成する。
func NewPostgresGoalRepo(dbGetter txStdLib.DBGetter) *PostgresGoalRepo {
	return &PostgresGoalRepo{dbGetter: dbGetter}
}

func scanGoal(row interface{ Scan(...any) error }, g *model.ReadingGoal) error {
	var goalType string
	err := row.Scan(&g.ID, &g.UserID, &goalType, &g.TargetValue, &g.CreatedAt, &g.UpdatedAt)
	g.GoalType = model.GoalType(goalType)
	return err
}

// Upsert は (user_id, goal_type) をキーに目標を作成または更新し、保存後の値を返す。
// 既存の目標を更新した場合、IDと作成日時は既存の値が維持される。
func (r *PostgresGoalRepo) Upsert(ctx context.Context, goal *model.ReadingGoal) (*model.ReadingGoal, error) {
	saved := &model.ReadingGoal{}
	err := scanGoal(r.dbGetter(ctx).QueryRowContext(ctx,
		`INSERT INTO reading_goals (id, user_id, goal_type, target_value, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, goal_type)
		 DO UPDATE SET target_value = EXCLUDED.target_value, updated_at = EXCLUDED.updated_at
		 RETURNING id, user_id, goal_type, target_value, created_at, updated_at`,
		goal.ID, goal.UserID, string(goal.GoalType), goal.TargetValue, goal.CreatedAt, goal.UpdatedAt,
	), saved)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert reading goal: %w", err)
	}
	return saved, nil
}

// FindByID は指定IDの目標を取得する。見つからない場合はnilを返す。
func (r *PostgresGoalRepo) FindByID(ctx context.Context, id string) (*model.ReadingGoal, error) {
	g := &model.ReadingGoal{}
	err := scanGoal(r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, goal_type, target_value, created_at, updated_at
		 FROM reading_goals WHERE id = $1`, id,
	), g)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reading goal: %w", err)
	}
	return g, nil
}

// ListByUser はユーザーの目標一覧を返す。
func (r *PostgresGoalRepo) ListByUser(ctx context.Context, userID string) ([]*model.ReadingGoal, error) {
	rows, err := r.dbGetter(ctx).QueryContext(ctx,
		`SELECT id, user_id, goal_type, target_value, created_at, updated_at
		 FROM reading_goals WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading goals: %w", err)
	}
	defer rows.Close()

	var goals []*model.ReadingGoal
	for rows.Next() {
		g := &model.ReadingGoal{}
		if err := scanGoal(rows, g); err != nil {
			return nil, fmt.Errorf("failed to scan reading goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading goals: %w", err)
	}
	return goals, nil
}

// Delete は指定IDの目標を削除する。
func (r *PostgresGoalRepo) Delete(ctx context.Context, id string) error {
	result, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM reading_goals WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete reading goal: %w", err)
	}
	return expectAffected(result)
}

// DeleteByUserID はユーザーの全目標を削除する。
func (r *PostgresGoalRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.dbGetter(ctx).ExecContext(ctx,
		`DELETE FROM reading_goals WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to delete reading goals: %w", err)
	}
	return nil
}

// compile-time interface check
var _ GoalRepository = (*PostgresGoalRepo)(nil)
