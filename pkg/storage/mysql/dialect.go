// Package mysql 提供MySQL方言实现
package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// Dialect MySQL方言实现（对外导出）
type Dialect struct{}

// NewDialect 创建MySQL方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name 返回方言名称
func (d *Dialect) Name() string {
	return "mysql"
}

// DriverName 返回驱动名
func (d *Dialect) DriverName() string {
	return "mysql"
}

// NormalizeDSN 确保DSN包含parseTime=true（对外导出）
// 否则DATETIME列无法扫描为time.Time
func NormalizeDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// CreateTableSQL 转换基准DDL为MySQL兼容格式
func (d *Dialect) CreateTableSQL(schema string) string {
	result := schema

	// 替换REAL为DOUBLE
	result = strings.ReplaceAll(result, "REAL", "DOUBLE")

	// MySQL不支持CREATE INDEX IF NOT EXISTS
	result = strings.ReplaceAll(result, "CREATE INDEX IF NOT EXISTS", "CREATE INDEX")

	return result
}

// IsUniqueViolation 判断唯一约束冲突
func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}

// 确保实现接口
var _ storage.Dialect = (*Dialect)(nil)
