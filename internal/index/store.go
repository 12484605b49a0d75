// Package index 实现按命名空间划分的向量索引：
// "email" 与 "drive" 两个 Elasticsearch 索引，各自独立查询与重置。
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"workspace-assistant-go/internal/model"
	"workspace-assistant-go/pkg/embedding"
	"workspace-assistant-go/pkg/es"
	"workspace-assistant-go/pkg/log"
)

// 向量索引的两个命名空间，与 data_source 取值一致。
const (
	NamespaceEmail = model.DataSourceEmail
	NamespaceDrive = model.DataSourceDrive
)

// Filter 是检索时的归属过滤条件。
// UserID 必填（精确匹配）；PathContains 可选，对 file_path
// 做大小写不敏感的子串匹配。
type Filter struct {
	UserID       string
	PathContains string
}

// Store 是向量索引的读写接口。摄取管道是唯一写入方，
// 检索方只读。文档一经写入不再更新，Reset 是唯一删除路径。
type Store interface {
	// Add 将文档向量化后以给定 id 写入命名空间。
	Add(ctx context.Context, namespace string, doc model.Document, id string) error
	// Query 返回与查询文本最相似的至多 k 个文档，按相似度降序。
	// 结果为空不是错误。
	Query(ctx context.Context, namespace, query string, k int, filter Filter) ([]model.Document, error)
	// Reset 删除并重建命名空间，清空其中全部条目。
	Reset(ctx context.Context, namespace string) error
	// EnsureNamespaces 确保两个命名空间的索引存在。
	EnsureNamespaces(ctx context.Context) error
}

// entry 是写入 Elasticsearch 的文档结构。
type entry struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Vector   []float32              `json:"vector"`
}

type esStore struct {
	client   *elasticsearch.Client
	embedder embedding.Client
	dims     int
}

// NewStore 创建一个基于 Elasticsearch 的向量索引。
func NewStore(client *elasticsearch.Client, embedder embedding.Client, dims int) Store {
	return &esStore{client: client, embedder: embedder, dims: dims}
}

// EnsureNamespaces 确保 email/drive 两个索引存在。
func (s *esStore) EnsureNamespaces(ctx context.Context) error {
	for _, ns := range []string{NamespaceEmail, NamespaceDrive} {
		if err := es.EnsureIndex(ctx, s.client, ns, s.dims); err != nil {
			return fmt.Errorf("初始化索引 '%s' 失败: %w", ns, err)
		}
	}
	return nil
}

// Add 向量化文档内容并写入。相同 id 重复写入会覆盖，但调用方
// 总是生成全新 uuid，因此重新摄取只会追加。
func (s *esStore) Add(ctx context.Context, namespace string, doc model.Document, id string) error {
	vector, err := s.embedder.CreateEmbedding(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("failed to create document embedding: %w", err)
	}

	e := entry{
		Content:  doc.Content,
		Metadata: doc.Metadata,
		Vector:   vector,
	}
	if err := es.IndexDocument(ctx, s.client, namespace, id, e); err != nil {
		return fmt.Errorf("索引文档到 '%s' 失败: %w", namespace, err)
	}
	return nil
}

// Query 执行 knn 检索并应用归属过滤。
func (s *esStore) Query(ctx context.Context, namespace, query string, k int, filter Filter) ([]model.Document, error) {
	queryVector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	body := buildQueryBody(queryVector, k, filter)
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(namespace),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[Index] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	docs := make([]model.Document, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		docs = append(docs, model.Document{
			Content:  hit.Source.Content,
			Metadata: hit.Source.Metadata,
		})
	}
	return docs, nil
}

// Reset 删除并按既定 mapping 重建命名空间。
func (s *esStore) Reset(ctx context.Context, namespace string) error {
	log.Infof("[Index] 重置命名空间 '%s'", namespace)
	if err := es.DeleteIndex(ctx, s.client, namespace); err != nil {
		return fmt.Errorf("删除索引 '%s' 失败: %w", namespace, err)
	}
	if err := es.EnsureIndex(ctx, s.client, namespace, s.dims); err != nil {
		return fmt.Errorf("重建索引 '%s' 失败: %w", namespace, err)
	}
	return nil
}

// buildQueryBody 构建 knn 检索请求体。
// 过滤条件固定包含 user_id 精确匹配；指定路径子串时追加
// 大小写不敏感的 wildcard 匹配。
func buildQueryBody(queryVector []float32, k int, filter Filter) map[string]interface{} {
	must := []map[string]interface{}{
		{"term": map[string]interface{}{"metadata.user_id.keyword": filter.UserID}},
	}
	if filter.PathContains != "" {
		must = append(must, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"metadata.file_path.keyword": map[string]interface{}{
					"value":            "*" + filter.PathContains + "*",
					"case_insensitive": true,
				},
			},
		})
	}

	return map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              k,
			"num_candidates": k * 10,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{
					"must": must,
				},
			},
		},
		"size":    k,
		"_source": []string{"content", "metadata"},
	}
}
