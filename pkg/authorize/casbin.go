package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	entadapter "github.com/casbin/ent-adapter"

	"github.com/Alijeyrad/franchise_backend/config"
)

type Resource string
type Action string

const (
	ResourceCommissionRule Resource = "commission_rule"
	ResourceRevenue        Resource = "revenue"
	ResourceStats          Resource = "stats"
	ResourceSettlement     Resource = "settlement"
	ResourceSchedule       Resource = "schedule"
	ResourceDirectory      Resource = "directory"
	ResourceInfluencer     Resource = "influencer"
)

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionApprove Action = "approve"
	ActionPay     Action = "pay"
	ActionRun     Action = "run"
	ActionAll     Action = "*"
)

const policyChannel = "franchise_policy_update"

// Roles inherit every grant of the roles ranked below them through g.
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
m = g(r.sub, p.sub) && r.obj == p.obj && (p.act == "*" || r.act == p.act)
`

// Permission is one p line of the policy.
type Permission struct {
	Role     Role
	Resource Resource
	Action   Action
}

// DefaultPermissions is the matrix seeded into an empty store.
var DefaultPermissions = []Permission{
	{RoleDealer, ResourceRevenue, ActionRead},
	{RoleDealer, ResourceStats, ActionRead},

	{RoleHQ, ResourceCommissionRule, ActionWrite},
	{RoleHQ, ResourceRevenue, ActionWrite},
	{RoleHQ, ResourceSettlement, ActionApprove},
	{RoleHQ, ResourceSettlement, ActionPay},
	{RoleHQ, ResourceSchedule, ActionAll},
	{RoleHQ, ResourceDirectory, ActionAll},
	{RoleHQ, ResourceInfluencer, ActionWrite},
}

// roleChain lists each role with the role directly beneath it.
var roleChain = [][2]Role{
	{RoleAdmin, RoleHQ},
	{RoleHQ, RoleBranch},
	{RoleBranch, RoleAgency},
	{RoleAgency, RoleDealer},
	{RoleDealer, RoleMerchant},
	{RoleMerchant, RoleUser},
}

var policyHealthy atomic.Bool

func init() {
	policyHealthy.Store(true)
}

// IsPolicyHealthy is false after a watcher-triggered reload failed.
func IsPolicyHealthy() bool {
	return policyHealthy.Load()
}

// Enforcer answers route permission checks against the casbin policy.
type Enforcer struct {
	e       *casbin.SyncedEnforcer
	audit   bool
	closers []func()
}

// NewEnforcer builds the enforcer for cfg. dsn is only used by the postgres
// policy store.
func NewEnforcer(cfg config.AuthorizationConfig, dsn string) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authorize: model: %w", err)
	}

	out := &Enforcer{audit: cfg.EnableAudit}
	if cfg.PolicyStore == "postgres" {
		a, err := entadapter.NewAdapter("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("authorize: policy adapter: %w", err)
		}
		if out.e, err = casbin.NewSyncedEnforcer(m, a); err != nil {
			return nil, fmt.Errorf("authorize: enforcer: %w", err)
		}
	} else {
		if out.e, err = casbin.NewSyncedEnforcer(m); err != nil {
			return nil, fmt.Errorf("authorize: enforcer: %w", err)
		}
	}

	if err := out.seed(); err != nil {
		out.Close()
		return nil, err
	}

	if cfg.PolicySyncEnabled {
		if err := out.watch(dsn); err != nil {
			out.Close()
			return nil, err
		}
	}
	return out, nil
}

// NewMemoryEnforcer is the seeded in-memory enforcer.
func NewMemoryEnforcer() (*Enforcer, error) {
	return NewEnforcer(config.AuthorizationConfig{}, "")
}

func (a *Enforcer) seed() error {
	added := 0
	for _, link := range roleChain {
		ok, err := a.e.AddGroupingPolicy(string(link[0]), string(link[1]))
		if err != nil {
			return fmt.Errorf("authorize: seed role %s: %w", link[0], err)
		}
		if ok {
			added++
		}
	}
	for _, p := range DefaultPermissions {
		ok, err := a.e.AddPolicy(string(p.Role), string(p.Resource), string(p.Action))
		if err != nil {
			return fmt.Errorf("authorize: seed %s %s %s: %w", p.Role, p.Resource, p.Action, err)
		}
		if ok {
			added++
		}
	}
	if added > 0 {
		slog.Info("seeded authorization policy", "rules", added)
	}
	return nil
}

func (a *Enforcer) watch(dsn string) error {
	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
		Channel: policyChannel,
	})
	if err != nil {
		return fmt.Errorf("authorize: policy watcher: %w", err)
	}
	a.closers = append(a.closers, w.Close)

	err = w.SetUpdateCallback(func(msg string) {
		slog.Debug("authorization policy update received", "message", msg)
		if err := a.e.LoadPolicy(); err != nil {
			slog.Error("authorization policy reload failed", "error", err)
			policyHealthy.Store(false)
			return
		}
		policyHealthy.Store(true)
	})
	if err != nil {
		return fmt.Errorf("authorize: policy watcher callback: %w", err)
	}
	return a.e.SetWatcher(w)
}

// Allow reports whether role may perform act on obj.
func (a *Enforcer) Allow(role Role, obj Resource, act Action) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	ok, err := a.e.Enforce(string(role), string(obj), string(act))
	if err != nil {
		return false, err
	}
	if a.audit && !ok {
		slog.Info("authorization denied", "role", role, "resource", obj, "action", act)
	}
	return ok, nil
}

// Grant adds a permission at runtime. With the postgres store it is persisted
// and, when sync is on, pushed to the other instances.
func (a *Enforcer) Grant(p Permission) (bool, error) {
	return a.e.AddPolicy(string(p.Role), string(p.Resource), string(p.Action))
}

func (a *Enforcer) Revoke(p Permission) (bool, error) {
	return a.e.RemovePolicy(string(p.Role), string(p.Resource), string(p.Action))
}

func (a *Enforcer) Close() {
	for _, c := range a.closers {
		c()
	}
}
