package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Policy wraps a casbin enforcer with the built-in role model:
// viewer reads timelines, ingest appends events, analyst does both
// plus pattern writes and manual correlation.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	rules := [][]string{
		{"viewer", "/api/cases/*", "GET"},
		{"ingest", "/api/cases/:case_id/events", "POST"},
		{"analyst", "/api/cases/*", "GET|POST"},
	}
	for _, rule := range rules {
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, err
		}
	}
	if _, err := e.AddGroupingPolicy("analyst", "viewer"); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(role, path, method string) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(role, path, method)
	return err == nil && ok
}
