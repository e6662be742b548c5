// Package postgres 提供PostgreSQL方言实现
package postgres

import (
	"strings"

	_ "github.com/lib/pq"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// Dialect PostgreSQL方言实现（对外导出）
type Dialect struct{}

// NewDialect 创建PostgreSQL方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name 返回方言名称
func (d *Dialect) Name() string {
	return "postgres"
}

// DriverName 返回驱动名
func (d *Dialect) DriverName() string {
	return "postgres"
}

// CreateTableSQL 转换基准DDL为PostgreSQL兼容格式
func (d *Dialect) CreateTableSQL(schema string) string {
	result := schema

	// 替换DATETIME为TIMESTAMP
	result = strings.ReplaceAll(result, "DATETIME", "TIMESTAMP")

	// 替换REAL为DOUBLE PRECISION
	result = strings.ReplaceAll(result, "REAL", "DOUBLE PRECISION")

	return result
}

// IsUniqueViolation 判断唯一约束冲突
func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key value")
}

// 确保实现接口
var _ storage.Dialect = (*Dialect)(nil)
