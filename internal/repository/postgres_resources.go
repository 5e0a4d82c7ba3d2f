package repository

import (
	"context"
)

// CountAvailable 统计某类型可用资源数量
func (s *PostgresStore) CountAvailable(ctx context.Context, resourceType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM resources
		WHERE resource_type = $1
		  AND available = TRUE
	`, resourceType).Scan(&count)
	if err != nil {
		return 0, classifyError("count available resources", err)
	}
	return count, nil
}
