// Package sqlite 提供SQLite方言实现
package sqlite

import (
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// Dialect SQLite方言实现（对外导出）
type Dialect struct{}

// NewDialect 创建SQLite方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name 返回方言名称
func (d *Dialect) Name() string {
	return "sqlite"
}

// DriverName 返回驱动名
func (d *Dialect) DriverName() string {
	return "sqlite3"
}

// CreateTableSQL 基准DDL即为SQLite格式，原样返回
func (d *Dialect) CreateTableSQL(schema string) string {
	return schema
}

// IsUniqueViolation 判断唯一约束冲突
func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// 确保实现接口
var _ storage.Dialect = (*Dialect)(nil)
