package domain

// Role 调用方角色，决定字段投影白名单
type Role string

const (
	RolePublic  Role = "public" // 最小权限，未识别角色一律按此处理
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole 将外部角色字符串解析为已知角色。
// 未识别的值回落到 RolePublic，而不是放行。
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleManager, RoleAdmin, RolePublic:
		return Role(s)
	default:
		return RolePublic
	}
}

// IsAdmin 判断角色是否具备管理权限
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
