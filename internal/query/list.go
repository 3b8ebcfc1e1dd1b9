package query

const (
	// DefaultPage 缺省页码
	DefaultPage = 1
	// DefaultLimit 缺省每页条数
	DefaultLimit = 20
	// MaxLimit 每页条数硬上限，防止无界扫描
	MaxLimit = 1000
)

// ListQuery 列表查询描述符，后端无关。
// 由 HTTP 层装配，仓储层翻译为具体存储操作。
type ListQuery struct {
	Page    int            // ≥ 1
	Limit   int            // 1 ~ MaxLimit
	Sort    string         // 多字段排序表达式，见 ParseSort
	Search  string         // 跨可搜索列的子串匹配
	Fields  []string       // 投影字段（经字段白名单裁剪后）
	Filters map[string]any // 等值/范围过滤，见 ParseFilters
}

// Normalize 将分页参数夹紧到合法区间
func (q *ListQuery) Normalize() {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
}

// Offset 当前页的行偏移
func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination 分页响应元数据。
// Total 是除分页外其余过滤条件全部生效后的总行数。
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination 计算分页元数据，TotalPages = ceil(Total/Limit)
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
