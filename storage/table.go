package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"ttracker/domain"
)

var (
	errEntityExists = errors.New("entity already exists")
	errNotFound     = fmt.Errorf("entity %w", domain.ErrNotFound)
)

// cond is an equality predicate on an entity property.
type cond struct {
	field string
	value any
}

func eq(field string, value any) cond { return cond{field: field, value: value} }

// storedEntity is a raw entity together with its concurrency tag.
type storedEntity struct {
	Value []byte
	ETag  string
}

// table is the subset of a table client the store relies on. Entities are
// JSON documents carrying their own PartitionKey and RowKey.
type table interface {
	Add(ctx context.Context, entity []byte) error
	Get(ctx context.Context, pk, rk string) (storedEntity, error)
	// Replace overwrites an entity if its tag still matches etag. An empty
	// etag matches any version.
	Replace(ctx context.Context, entity []byte, etag string) error
	// Merge updates only the properties present in entity.
	Merge(ctx context.Context, entity []byte) error
	Delete(ctx context.Context, pk, rk string) error
	List(ctx context.Context, pk string, where ...cond) ([][]byte, error)
}

type azTable struct {
	client *aztables.Client
}

func (t azTable) Add(ctx context.Context, entity []byte) error {
	_, err := t.client.AddEntity(ctx, entity, nil)
	return classify(err)
}

func (t azTable) Get(ctx context.Context, pk, rk string) (storedEntity, error) {
	resp, err := t.client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		return storedEntity{}, classify(err)
	}
	return storedEntity{Value: resp.Value, ETag: string(resp.ETag)}, nil
}

func (t azTable) Replace(ctx context.Context, entity []byte, etag string) error {
	et := azcore.ETagAny
	if etag != "" {
		et = azcore.ETag(etag)
	}
	_, err := t.client.UpdateEntity(ctx, entity, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	return classify(err)
}

func (t azTable) Merge(ctx context.Context, entity []byte) error {
	et := azcore.ETagAny
	_, err := t.client.UpdateEntity(ctx, entity, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return classify(err)
}

func (t azTable) Delete(ctx context.Context, pk, rk string) error {
	_, err := t.client.DeleteEntity(ctx, pk, rk, nil)
	return classify(err)
}

func (t azTable) List(ctx context.Context, pk string, where ...cond) ([][]byte, error) {
	filter := odataFilter(pk, where)
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var out [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, resp.Entities...)
	}
	return out, nil
}

func odataFilter(pk string, where []cond) string {
	var b strings.Builder
	b.WriteString("PartitionKey eq ")
	b.WriteString(odataLiteral(pk))
	for _, c := range where {
		b.WriteString(" and ")
		b.WriteString(c.field)
		b.WriteString(" eq ")
		b.WriteString(odataLiteral(c.value))
	}
	return b.String()
}

func odataLiteral(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return errNotFound
		case http.StatusConflict:
			return errEntityExists
		case http.StatusPreconditionFailed:
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}
