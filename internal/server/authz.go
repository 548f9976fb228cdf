package server

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cipherpoll/internal/identity"
	"gorm.io/gorm"
)

const (
	roleAdmin = "admin"

	routeCredit = "/v1/tokens/:token/credit"

	objSimulatedTime = "simulated_time"
	actApply         = "apply"
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
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// Authorizer guards operator routes. Policies live in the casbin_rule table;
// configured admins are granted the admin role on startup.
type Authorizer struct {
	enforcer *casbin.Enforcer
	open     bool
}

func NewAuthorizer(db *gorm.DB, admins []string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	for _, rule := range [][]string{
		{roleAdmin, routeCredit, http.MethodPost},
		{roleAdmin, objSimulatedTime, actApply},
	} {
		if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, err
		}
	}
	for _, admin := range admins {
		id := identity.Normalize(admin)
		if id == "" {
			continue
		}
		if _, err := enforcer.AddRoleForUser(id, roleAdmin); err != nil {
			return nil, err
		}
	}

	return &Authorizer{enforcer: enforcer, open: len(admins) == 0}, nil
}

// Open reports whether no admins are configured, in which case every caller
// passes.
func (a *Authorizer) Open() bool { return a == nil || a.open }

func (a *Authorizer) Allowed(caller, route, method string) (bool, error) {
	if a.Open() {
		return true, nil
	}
	return a.enforcer.Enforce(caller, route, method)
}

// CanSimulateTime reports whether caller may pin ledger time for a request.
func (a *Authorizer) CanSimulateTime(caller string) (bool, error) {
	if a.Open() {
		return true, nil
	}
	if caller == "" {
		return false, nil
	}
	return a.enforcer.Enforce(caller, objSimulatedTime, actApply)
}

// RequireRole rejects callers the authorizer does not grant the matched route.
func (s *Server) RequireRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authz.Open() {
			c.Next()
			return
		}
		caller, err := identity.RequireCaller(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ok, err := s.authz.Allowed(caller, c.FullPath(), c.Request.Method)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
