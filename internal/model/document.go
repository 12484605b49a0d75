// Package model 包含了应用的数据模型定义。
package model

// 数据来源标识，对应向量索引的两个命名空间。
const (
	DataSourceEmail = "email"
	DataSourceDrive = "drive"
)

// Document 是进入向量索引的最小单元：纯文本内容加来源元数据。
// 元数据必须携带 user_id 与 data_source，检索时据此做归属过滤。
// 文档一经索引即不可变，重新摄取会以新 id 追加新条目。
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}
