package vectorstore

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// getAllBatch bounds unfiltered reads; Weaviate requires an explicit limit.
const getAllBatch = 10000

// WeaviateClient is the remote vector store backend. The Manager's
// filesystem recovery steps do not apply to it; schema recreation on
// open is the equivalent of starting fresh.
type WeaviateClient struct {
	client    *weaviate.Client
	className string
}

// OpenWeaviate connects to a Weaviate instance and ensures the chunk
// class exists with the expected properties.
func OpenWeaviate(ctx context.Context, host, scheme, className string) (*WeaviateClient, error) {
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, classifyRemote("open", err)
	}

	c := &WeaviateClient{client: client, className: className}
	if err := c.ensureClass(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *WeaviateClient) ensureClass(ctx context.Context) error {
	exists, err := c.client.Schema().ClassExistenceChecker().WithClassName(c.className).Do(ctx)
	if err != nil {
		return classifyRemote("ensure_class", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:       c.className,
		Description: "A chunk of an indexed document",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "filename", DataType: []string{"string"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "lineStart", DataType: []string{"int"}},
			{Name: "lineEnd", DataType: []string{"int"}},
			{Name: "uploadedAt", DataType: []string{"string"}},
		},
	}
	if err := c.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return classifyRemote("ensure_class", err)
	}
	return nil
}

func (c *WeaviateClient) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class: c.className,
			ID:    strfmt.UUID(r.ID),
			Properties: map[string]interface{}{
				"content":    r.Content,
				"filename":   r.Metadata.Filename,
				"chunkIndex": r.Metadata.ChunkIndex,
				"lineStart":  r.Metadata.LineStart,
				"lineEnd":    r.Metadata.LineEnd,
				"uploadedAt": r.Metadata.UploadedAt,
			},
			Vector: r.Embedding,
		}
	}

	res, err := c.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return classifyRemote("upsert", err)
	}
	for _, obj := range res {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return classifyRemote("upsert", fmt.Errorf("batch object error: %s", obj.Result.Errors.Error[0].Message))
		}
	}
	return nil
}

func (c *WeaviateClient) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	nearVector := c.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	res, err := c.client.GraphQL().Get().
		WithClassName(c.className).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(c.chunkFields(true)...).
		Do(ctx)
	if err != nil {
		return nil, classifyRemote("query", err)
	}
	if len(res.Errors) > 0 {
		return nil, classifyRemote("query", fmt.Errorf("graphql error: %v", res.Errors[0].Message))
	}

	var matches []Match
	for _, props := range c.unwrap(res.Data) {
		m := Match{
			Content:  asString(props["content"]),
			Metadata: propsMetadata(props),
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			m.ID = asString(additional["id"])
			if distance, ok := additional["distance"].(float64); ok {
				m.Distance = distance
				m.HasDistance = true
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *WeaviateClient) DeleteByIDs(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := c.client.Data().Deleter().WithClassName(c.className).WithID(id).Do(ctx)
		if err != nil {
			return classifyRemote("delete_by_ids", err)
		}
	}
	return nil
}

func (c *WeaviateClient) DeleteByFilter(ctx context.Context, field, value string) ([]string, error) {
	if field != "filename" {
		return nil, &Error{Kind: KindUnknown, Op: "delete_by_filter",
			Err: fmt.Errorf("unsupported filter field %q", field)}
	}

	records, err := c.GetAll(ctx, 0, 0, value)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	where := filters.Where().
		WithPath([]string{"filename"}).
		WithOperator(filters.Equal).
		WithValueString(value)

	_, err = c.client.Batch().ObjectsBatchDeleter().
		WithClassName(c.className).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return nil, classifyRemote("delete_by_filter", err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids, nil
}

func (c *WeaviateClient) Count(ctx context.Context) (int, error) {
	res, err := c.client.GraphQL().Aggregate().
		WithClassName(c.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, classifyRemote("count", err)
	}
	if len(res.Errors) > 0 {
		return 0, classifyRemote("count", fmt.Errorf("graphql error: %v", res.Errors[0].Message))
	}

	if aggregate, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := aggregate[c.className].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, classifyRemote("count", fmt.Errorf("unexpected aggregate response shape"))
}

func (c *WeaviateClient) GetAll(ctx context.Context, limit, offset int, filterValue string) ([]Record, error) {
	if limit <= 0 {
		limit = getAllBatch
	}

	builder := c.client.GraphQL().Get().
		WithClassName(c.className).
		WithLimit(limit).
		WithOffset(offset).
		WithFields(c.chunkFields(false)...)

	if filterValue != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"filename"}).
			WithOperator(filters.Equal).
			WithValueString(filterValue))
	}

	res, err := builder.Do(ctx)
	if err != nil {
		return nil, classifyRemote("get_all", err)
	}
	if len(res.Errors) > 0 {
		return nil, classifyRemote("get_all", fmt.Errorf("graphql error: %v", res.Errors[0].Message))
	}

	var records []Record
	for _, props := range c.unwrap(res.Data) {
		r := Record{
			Content:  asString(props["content"]),
			Metadata: propsMetadata(props),
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			r.ID = asString(additional["id"])
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *WeaviateClient) CollectionName() string { return c.className }

func (c *WeaviateClient) Close() error { return nil }

func (c *WeaviateClient) chunkFields(withDistance bool) []graphql.Field {
	additional := []graphql.Field{{Name: "id"}}
	if withDistance {
		additional = append(additional, graphql.Field{Name: "distance"})
	}
	return []graphql.Field{
		{Name: "content"},
		{Name: "filename"},
		{Name: "chunkIndex"},
		{Name: "lineStart"},
		{Name: "lineEnd"},
		{Name: "uploadedAt"},
		{Name: "_additional", Fields: additional},
	}
}

func (c *WeaviateClient) unwrap(data map[string]models.JSONObject) []map[string]interface{} {
	var out []map[string]interface{}
	if get, ok := data["Get"].(map[string]interface{}); ok {
		if rows, ok := get[c.className].([]interface{}); ok {
			for _, row := range rows {
				if props, ok := row.(map[string]interface{}); ok {
					out = append(out, props)
				}
			}
		}
	}
	return out
}

func propsMetadata(props map[string]interface{}) Metadata {
	return Metadata{
		Filename:   asString(props["filename"]),
		ChunkIndex: asInt(props["chunkIndex"]),
		LineStart:  asInt(props["lineStart"]),
		LineEnd:    asInt(props["lineEnd"]),
		UploadedAt: asString(props["uploadedAt"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt(v interface{}) int {
	// GraphQL JSON decodes numbers as float64.
	f, _ := v.(float64)
	return int(f)
}

func classifyRemote(op string, err error) *Error {
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

var _ Client = (*WeaviateClient)(nil)
