package storage

// Dialect SQL方言接口（对外导出）
// 封装不同数据库的驱动与DDL差异；占位符差异由sqlx的named query处理
type Dialect interface {
	// Name 返回方言名称（如 "sqlite", "mysql", "postgres"）
	Name() string

	// DriverName 返回sqlx.Open使用的驱动名
	DriverName() string

	// CreateTableSQL 转换DDL为当前方言兼容格式
	// 基准DDL按SQLite书写
	CreateTableSQL(schema string) string

	// IsUniqueViolation 判断错误是否为唯一约束冲突
	IsUniqueViolation(err error) bool
}
