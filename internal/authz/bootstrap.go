package authz

import (
	"fmt"
	"strings"
)

// RoleSeed 预置角色定义，Permissions 形如 "GET /admin/products"
type RoleSeed struct {
	Role        string
	Inherits    []string
	Permissions []string
}

// 预置角色名称
const (
	RoleInventoryViewer   = "inventory_viewer"
	RoleInventoryOperator = "inventory_operator"
	RoleOrderSupport      = "order_support"
)

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleInventoryViewer,
			Permissions: []string{
				"GET /admin/products",
				"GET /admin/products/:id/codes",
				"GET /admin/products/:id/codes/stats",
				"GET /admin/products/:id/batches",
				"GET /admin/inventory/stats",
				"GET /admin/orders",
				"GET /admin/orders/:order_no",
			},
		},
		{
			Role:     RoleInventoryOperator,
			Inherits: []string{RoleInventoryViewer},
			Permissions: []string{
				"POST /admin/products",
				"POST /admin/products/:id/codes",
				"POST /admin/products/:id/codes/import",
				"GET /admin/products/:id/codes/export",
				"POST /admin/inventory/reconcile",
			},
		},
		{
			Role:        RoleOrderSupport,
			Inherits:    []string{RoleInventoryViewer},
			Permissions: []string{"POST /admin/orders/:order_no/void"},
		},
	}
}

// BootstrapBuiltinRoles 幂等写入预置角色、继承关系与策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.addGrouping(role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, permission := range seed.Permissions {
			action, object, ok := strings.Cut(permission, " ")
			if !ok {
				return fmt.Errorf("invalid builtin permission %q", permission)
			}
			if err := s.GrantRolePolicy(role, object, action); err != nil {
				return err
			}
		}
	}
	return nil
}
