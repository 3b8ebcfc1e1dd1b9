package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSort(t *testing.T) {
	t.Run("解析多字段排序表达式", func(t *testing.T) {
		fields := ParseSort("name:asc,created_at:desc")

		assert.Equal(t, []SortField{
			{Field: "name", Direction: DirectionAsc},
			{Field: "created_at", Direction: DirectionDesc},
		}, fields)
	})

	t.Run("缺省方向为desc", func(t *testing.T) {
		fields := ParseSort("name")

		assert.Len(t, fields, 1)
		assert.Equal(t, DirectionDesc, fields[0].Direction)
	})

	t.Run("未识别的方向按desc处理", func(t *testing.T) {
		fields := ParseSort("name:upward")

		assert.Equal(t, []SortField{{Field: "name", Direction: DirectionDesc}}, fields)
	})

	t.Run("方向大小写不敏感", func(t *testing.T) {
		fields := ParseSort("name:ASC")

		assert.Equal(t, DirectionAsc, fields[0].Direction)
	})

	t.Run("空表达式返回nil", func(t *testing.T) {
		assert.Nil(t, ParseSort(""))
		assert.Nil(t, ParseSort("   "))
	})

	t.Run("忽略空白字段并裁剪空格", func(t *testing.T) {
		fields := ParseSort(" name : asc , , id ")

		assert.Len(t, fields, 2)
		assert.Equal(t, "name", fields[0].Field)
		assert.Equal(t, DirectionAsc, fields[0].Direction)
		assert.Equal(t, "id", fields[1].Field)
	})
}

func TestParseFilters(t *testing.T) {
	t.Run("范围过滤三元组独立可选可组合", func(t *testing.T) {
		filters := ParseFilters(map[string]any{
			"price":     100,
			"price_min": 10,
			"price_max": 500,
		})

		assert.Len(t, filters, 3)

		ops := map[FilterOp]any{}
		for _, f := range filters {
			assert.Equal(t, "price", f.Field)
			ops[f.Op] = f.Value
		}
		assert.Equal(t, 100, ops[OpEq])
		assert.Equal(t, 10, ops[OpGte])
		assert.Equal(t, 500, ops[OpLte])
	})

	t.Run("nil值被跳过", func(t *testing.T) {
		filters := ParseFilters(map[string]any{"status": nil})

		assert.Empty(t, filters)
	})

	t.Run("空map返回nil", func(t *testing.T) {
		assert.Nil(t, ParseFilters(nil))
	})
}

func TestListQueryNormalize(t *testing.T) {
	t.Run("非法分页参数夹紧到缺省值", func(t *testing.T) {
		q := ListQuery{Page: 0, Limit: -5}
		q.Normalize()

		assert.Equal(t, DefaultPage, q.Page)
		assert.Equal(t, DefaultLimit, q.Limit)
	})

	t.Run("每页条数不超过硬上限", func(t *testing.T) {
		q := ListQuery{Page: 1, Limit: 5000}
		q.Normalize()

		assert.Equal(t, MaxLimit, q.Limit)
	})

	t.Run("偏移量计算", func(t *testing.T) {
		q := ListQuery{Page: 3, Limit: 20}

		assert.Equal(t, 40, q.Offset())
	})
}

func TestNewPagination(t *testing.T) {
	t.Run("总页数向上取整", func(t *testing.T) {
		p := NewPagination(1, 20, 95)

		assert.Equal(t, int64(95), p.Total)
		assert.Equal(t, 5, p.TotalPages)
	})

	t.Run("整除时不多算一页", func(t *testing.T) {
		p := NewPagination(1, 20, 100)

		assert.Equal(t, 5, p.TotalPages)
	})

	t.Run("零行零页", func(t *testing.T) {
		p := NewPagination(1, 20, 0)

		assert.Equal(t, 0, p.TotalPages)
	})
}
