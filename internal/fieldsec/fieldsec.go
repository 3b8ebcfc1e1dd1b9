// Package fieldsec 实现按角色的字段投影白名单。
// 白名单是静态、可审查的映射，永远不从用户输入推导。
package fieldsec

import (
	"go.uber.org/zap"

	"aegisx/backend/internal/domain"
)

// SignalRecorder 可疑投影信号的上报接口（由 monitoring.Metrics 实现）
type SignalRecorder interface {
	RecordSuspiciousProjection(role string)
}

// Allowlist 角色到可检索列集合的闭合映射。
// 查找必须带显式兜底：未识别的角色回落到 RolePublic 的白名单，
// 绝不允许裸索引导致静默绕过限制。
type Allowlist struct {
	roles    map[domain.Role][]string
	log      *zap.Logger
	recorder SignalRecorder
}

// Caller 发起投影请求的调用方身份，用于审计
type Caller struct {
	UserID string
	IP     string
}

// New 创建字段白名单。
// roles 必须包含非空的 RolePublic 条目：它是所有未识别角色的兜底投影，
// 缺失会让兜底退化为"无限制"。白名单在启动期静态装配，缺失即编程错误，
// 直接 panic 快速失败。
func New(roles map[domain.Role][]string, log *zap.Logger, recorder SignalRecorder) *Allowlist {
	if len(roles[domain.RolePublic]) == 0 {
		panic("fieldsec: allowlist requires a non-empty RolePublic entry")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Allowlist{
		roles:    roles,
		log:      log,
		recorder: recorder,
	}
}

// FieldsFor 返回角色的完整白名单（缺省投影）。
// 未识别的角色按最小权限处理。
func (a *Allowlist) FieldsFor(role domain.Role) []string {
	if fields, ok := a.roles[role]; ok {
		return fields
	}
	return a.roles[domain.RolePublic]
}

// Resolve 计算角色可见的有效投影字段集。
//
// 请求字段为空表示"全部字段"，直接返回角色白名单。
// 否则取请求与白名单的交集；交集为空时回落到缺省投影（不报错），
// 同时记录一条可疑访问审计——超量请求字段本身不是攻击，但值得观察。
func (a *Allowlist) Resolve(role domain.Role, requested []string, caller Caller) []string {
	allowed := a.FieldsFor(role)
	if len(requested) == 0 {
		return allowed
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}

	effective := make([]string, 0, len(requested))
	for _, f := range requested {
		if _, ok := allowedSet[f]; ok {
			effective = append(effective, f)
		}
	}

	if len(effective) == 0 {
		a.audit(role, requested, allowed, caller)
		return allowed
	}

	if len(effective) < len(requested) {
		a.audit(role, requested, effective, caller)
	}
	return effective
}

// audit 记录可疑投影请求，仅作监控信号
func (a *Allowlist) audit(role domain.Role, requested, allowed []string, caller Caller) {
	a.log.Warn("suspicious field projection request",
		zap.String("role", string(role)),
		zap.Strings("requested_fields", requested),
		zap.Strings("allowed_fields", allowed),
		zap.String("user_id", caller.UserID),
		zap.String("ip", caller.IP),
	)
	if a.recorder != nil {
		a.recorder.RecordSuspiciousProjection(string(role))
	}
}
