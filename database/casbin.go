package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

func Casbin(db *gorm.DB) (*casbin.Enforcer, error) {
	// Initialize casbin adapter
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	// Add default policy
	if hasPolicy, _ := e.HasPolicy(RoleAdmin, "/api/admin*", "(GET)|(POST)|(PUT)|(PATCH)|(DELETE)"); !hasPolicy {
		if _, err := e.AddPolicy(RoleAdmin, "/api/admin*", "(GET)|(POST)|(PUT)|(PATCH)|(DELETE)"); err != nil {
			return nil, err
		}
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}
	return e, nil
}
