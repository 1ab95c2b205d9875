package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix        = "/api/v1"
	casbinTableName    = "casbin_rule"
	operatorSubjectFmt = "operator:%s"
	rolePrefix         = "role:"
	roleAnchor         = "role:__anchor__"
)

const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Permission 以 "ACT:/path" 形式表示，与权限目录一致
func (p Policy) Permission() string {
	return p.Action + ":" + p.Object
}

var errUnavailable = errors.New("authz service unavailable")

// Service 运营后台授权，策略持久化在 casbin_rule 表
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务并加载已有策略
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return errUnavailable
	}
	return nil
}

// Enforce 执行授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceOperator 按运营账号判定授权：先校验账号绑定的角色，再校验令牌携带的角色
func (s *Service) EnforceOperator(operator string, tokenRoles []string, obj, act string) (bool, error) {
	subject, err := SubjectForOperator(operator)
	if err != nil {
		return false, err
	}
	allowed, err := s.Enforce(subject, obj, act)
	if err != nil || allowed {
		return allowed, err
	}
	for _, role := range tokenRoles {
		normalized, err := NormalizeRole(role)
		if err != nil || normalized == roleAnchor {
			continue
		}
		allowed, err := s.Enforce(normalized, obj, act)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// addGrouping 写入 g 规则，返回是否新增
func (s *Service) addGrouping(child, parent string) (bool, error) {
	exists, err := s.enforcer.HasNamedGroupingPolicy("g", child, parent)
	if err != nil || exists {
		return false, err
	}
	return s.enforcer.AddNamedGroupingPolicy("g", child, parent)
}

// EnsureRole 确保角色存在，角色通过挂到锚点上登记
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", fmt.Errorf("reserved role is not allowed")
	}
	if _, err := s.addGrouping(normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role %s failed: %w", normalized, err)
	}
	return normalized, nil
}

// GrantRolePolicy 为角色授予策略
func (s *Service) GrantRolePolicy(role, object, action string) error {
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return fmt.Errorf("action is required")
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, NormalizeObject(object), normalizedAction); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// RolePermissions 角色的全部权限（含继承），按权限串排序
func (s *Service) RolePermissions(role string) ([]Policy, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	seen := map[string]bool{normalized: true}
	pending := []string{normalized}
	policies := make([]Policy, 0)
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		rules, err := s.enforcer.GetFilteredPolicy(0, current)
		if err != nil {
			return nil, fmt.Errorf("get role policies failed: %w", err)
		}
		for _, rule := range rules {
			if len(rule) < 3 {
				continue
			}
			policies = append(policies, Policy{Subject: current, Object: NormalizeObject(rule[1]), Action: NormalizeAction(rule[2])})
		}

		parents, err := s.enforcer.GetRolesForUser(current)
		if err != nil {
			return nil, fmt.Errorf("get parent roles failed: %w", err)
		}
		for _, parent := range parents {
			if parent == roleAnchor || seen[parent] {
				continue
			}
			seen[parent] = true
			pending = append(pending, parent)
		}
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Permission() < policies[j].Permission() })
	return policies, nil
}

// SetOperatorRoles 覆盖设置运营账号角色
func (s *Service) SetOperatorRoles(operator string, roles []string) error {
	subject, err := SubjectForOperator(operator)
	if err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear operator roles failed: %w", err)
	}
	for _, role := range roles {
		normalizedRole, err := s.EnsureRole(role)
		if err != nil {
			return err
		}
		if _, err := s.addGrouping(subject, normalizedRole); err != nil {
			return fmt.Errorf("assign operator role failed: %w", err)
		}
	}
	return nil
}

// GetOperatorRoles 查询运营账号直接绑定的角色
func (s *Service) GetOperatorRoles(operator string) ([]string, error) {
	subject, err := SubjectForOperator(operator)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("get operator roles failed: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) && role != roleAnchor {
			filtered = append(filtered, role)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// SubjectForOperator 生成运营账号主体标识
func SubjectForOperator(operator string) (string, error) {
	normalized := strings.TrimSpace(operator)
	if normalized == "" {
		return "", fmt.Errorf("operator is required")
	}
	return fmt.Sprintf(operatorSubjectFmt, normalized), nil
}

// NormalizeRole 统一角色名称
func NormalizeRole(role string) (string, error) {
	normalized := strings.TrimSpace(role)
	if normalized == "" {
		return "", fmt.Errorf("role is required")
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", fmt.Errorf("role is required")
	}
	return normalized, nil
}

// NormalizeObject 统一授权资源路径
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
