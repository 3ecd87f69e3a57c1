package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/devpetry/vipi-matrizes/internal/model"
)

const categoryColumns = `id, name, kind, user_id, created_at, updated_at`

func scanCategory(row pgx.Row) (model.Category, error) {
	var category model.Category
	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Kind,
		&category.UserID,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	return category, err
}

// ListCategories returns the categories owned by a user.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, categoryID, userID string) (model.Category, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, categoryID, userID)
	return scanCategory(row)
}

func (s *Store) CreateCategory(ctx context.Context, category model.Category) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, name, kind, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, category.ID, category.Name, category.Kind, category.UserID, category.CreatedAt, category.UpdatedAt)
	return err
}

func (s *Store) UpdateCategory(ctx context.Context, categoryID, userID string, name string, kind model.CategoryKind) (model.Category, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE categories
		SET name = $1, kind = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING `+categoryColumns+`
	`, name, kind, categoryID, userID)
	return scanCategory(row)
}

func (s *Store) DeleteCategory(ctx context.Context, categoryID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM categories
		WHERE id = $1 AND user_id = $2
	`, categoryID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const itemColumns = `id, description, quantity, unit_value, created_at, updated_at, updated_by, deleted_at`

func scanItem(row pgx.Row) (model.Item, error) {
	var item model.Item
	err := row.Scan(
		&item.ID,
		&item.Description,
		&item.Quantity,
		&item.UnitValue,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.UpdatedBy,
		&item.DeletedAt,
	)
	return item, err
}

func (s *Store) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1 AND deleted_at IS NULL
	`, itemID)
	return scanItem(row)
}

func (s *Store) CreateItem(ctx context.Context, item model.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, description, quantity, unit_value, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Description, item.Quantity, item.UnitValue, item.CreatedAt, item.UpdatedAt, item.UpdatedBy)
	return err
}

type ItemUpdate struct {
	Description *string
	Quantity    *int64
	UnitValue   *float64
	UpdatedBy   string
}

func (s *Store) UpdateItem(ctx context.Context, itemID string, update ItemUpdate) (model.Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE items
		SET description = COALESCE($1, description),
		    quantity = COALESCE($2, quantity),
		    unit_value = COALESCE($3, unit_value),
		    updated_at = NOW(),
		    updated_by = $4
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING `+itemColumns+`
	`, update.Description, update.Quantity, update.UnitValue, update.UpdatedBy, itemID)
	return scanItem(row)
}

func (s *Store) SoftDeleteItem(ctx context.Context, itemID string, deletedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE items
		SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, deletedAt, itemID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const matrixColumns = `id, code, description, image_url, kind, first_number, last_number, notes, created_at, created_by, updated_at, updated_by, deleted_at`

func scanMatrix(row pgx.Row) (model.Matrix, error) {
	var matrix model.Matrix
	err := row.Scan(
		&matrix.ID,
		&matrix.Code,
		&matrix.Description,
		&matrix.ImageURL,
		&matrix.Kind,
		&matrix.FirstNumber,
		&matrix.LastNumber,
		&matrix.Notes,
		&matrix.CreatedAt,
		&matrix.CreatedBy,
		&matrix.UpdatedAt,
		&matrix.UpdatedBy,
		&matrix.DeletedAt,
	)
	return matrix, err
}

func (s *Store) ListMatrices(ctx context.Context) ([]model.Matrix, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+matrixColumns+`
		FROM matrices
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matrices []model.Matrix
	for rows.Next() {
		matrix, err := scanMatrix(rows)
		if err != nil {
			return nil, err
		}
		matrices = append(matrices, matrix)
	}
	return matrices, rows.Err()
}

func (s *Store) GetMatrix(ctx context.Context, matrixID string) (model.Matrix, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+matrixColumns+`
		FROM matrices
		WHERE id = $1 AND deleted_at IS NULL
	`, matrixID)
	return scanMatrix(row)
}

func (s *Store) CreateMatrix(ctx context.Context, matrix model.Matrix) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matrices
			(id, code, description, image_url, kind, first_number, last_number, notes,
			 created_at, created_by, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, matrix.ID, matrix.Code, matrix.Description, matrix.ImageURL, matrix.Kind,
		matrix.FirstNumber, matrix.LastNumber, matrix.Notes,
		matrix.CreatedAt, matrix.CreatedBy, matrix.UpdatedAt, matrix.UpdatedBy)
	return err
}

type MatrixUpdate struct {
	Code        string
	Description string
	ImageURL    *string
	Kind        *string
	FirstNumber *int64
	LastNumber  *int64
	Notes       *string
	UpdatedBy   string
}

func (s *Store) UpdateMatrix(ctx context.Context, matrixID string, update MatrixUpdate) (model.Matrix, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE matrices
		SET code = $1,
		    description = $2,
		    image_url = $3,
		    kind = $4,
		    first_number = $5,
		    last_number = $6,
		    notes = $7,
		    updated_at = NOW(),
		    updated_by = $8
		WHERE id = $9 AND deleted_at IS NULL
		RETURNING `+matrixColumns+`
	`, update.Code, update.Description, update.ImageURL, update.Kind,
		update.FirstNumber, update.LastNumber, update.Notes, update.UpdatedBy, matrixID)
	return scanMatrix(row)
}

func (s *Store) SoftDeleteMatrix(ctx context.Context, matrixID string, deletedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE matrices
		SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, deletedAt, matrixID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
