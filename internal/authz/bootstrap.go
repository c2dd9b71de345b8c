package authz

import (
	"fmt"

	"github.com/pawpledge/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵，admin 继承 moderator
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleModerator,
			Policies: []Policy{
				{Object: constants.AuthzObjectSubscriptions, Action: constants.AuthzActionReadAny},
				{Object: constants.AuthzObjectPayments, Action: constants.AuthzActionRead},
				{Object: constants.AuthzObjectAnimals, Action: constants.AuthzActionWrite},
			},
		},
		{
			Role:     constants.RoleAdmin,
			Inherits: []string{constants.RoleModerator},
			Policies: []Policy{
				{Object: constants.AuthzObjectSubscriptions, Action: constants.AuthzActionCancelAny},
				{Object: constants.AuthzObjectAuthz, Action: constants.AuthzActionRead},
				{Object: constants.AuthzObjectAuthz, Action: constants.AuthzActionWrite},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
