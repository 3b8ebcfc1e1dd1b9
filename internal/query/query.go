package query

import "strings"

// Direction 排序方向
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// SortField 一对排序字段与方向
type SortField struct {
	Field     string
	Direction Direction
}

// ParseSort 解析多字段排序表达式。
//
// 语法: field[:dir](,field[:dir])*
// 缺省方向为 desc，未识别的方向 token 一律按 desc 处理。
// 字段名是否合法由各表的排序白名单裁决，不在此处校验。
func ParseSort(expr string) []SortField {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	pairs := strings.Split(expr, ",")
	fields := make([]SortField, 0, len(pairs))
	for _, pair := range pairs {
		name, dir, _ := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		direction := DirectionDesc
		if strings.EqualFold(strings.TrimSpace(dir), "asc") {
			direction = DirectionAsc
		}

		fields = append(fields, SortField{Field: name, Direction: direction})
	}
	return fields
}

// FilterOp 过滤比较操作符
type FilterOp string

const (
	OpEq  FilterOp = "="  // 等值
	OpGte FilterOp = ">=" // <field>_min
	OpLte FilterOp = "<=" // <field>_max
)

// Filter 单个字段过滤条件
type Filter struct {
	Field string // 去除 _min/_max 后缀后的外部字段名
	Op    FilterOp
	Value any
}

// ParseFilters 将 <field> / <field>_min / <field>_max 形式的过滤键
// 组合为条件列表，三者各自可选、AND 语义。
// 过滤值由上游 schema 层预先校验，这里只负责组合。
func ParseFilters(filters map[string]any) []Filter {
	if len(filters) == 0 {
		return nil
	}

	out := make([]Filter, 0, len(filters))
	for key, value := range filters {
		if value == nil {
			continue
		}
		switch {
		case strings.HasSuffix(key, "_min"):
			out = append(out, Filter{Field: strings.TrimSuffix(key, "_min"), Op: OpGte, Value: value})
		case strings.HasSuffix(key, "_max"):
			out = append(out, Filter{Field: strings.TrimSuffix(key, "_max"), Op: OpLte, Value: value})
		default:
			out = append(out, Filter{Field: key, Op: OpEq, Value: value})
		}
	}
	return out
}
