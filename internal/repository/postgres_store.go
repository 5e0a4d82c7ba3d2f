package repository

import (
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"
)

// PostgresStore 基于 PostgreSQL 的存储实现
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore 创建 PostgreSQL 存储
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

var _ Store = (*PostgresStore)(nil)

// nullableString 空字符串写入为 NULL
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// jsonArray 序列化字符串数组，nil 写为 []
func jsonArray(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
