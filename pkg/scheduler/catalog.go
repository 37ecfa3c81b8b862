package scheduler

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/jdziat/simple-recurring-jobs/pkg/args"
	"github.com/jdziat/simple-recurring-jobs/pkg/core"
	"github.com/jdziat/simple-recurring-jobs/pkg/schedule"
	"github.com/jdziat/simple-recurring-jobs/pkg/security"
)

// Catalog is the fixed table of job implementations known to a process,
// keyed by type id. It is built once at startup from an explicit list.
type Catalog struct {
	jobs  map[string]core.Job
	rules map[string]schedule.Rule
	order []string
}

// NewCatalog validates jobs and indexes them by type id. A malformed type
// id, extension group or default recurrence, or a duplicate type id, is a
// configuration error.
func NewCatalog(jobs ...core.Job) (*Catalog, error) {
	c := &Catalog{
		jobs:  make(map[string]core.Job, len(jobs)),
		rules: make(map[string]schedule.Rule, len(jobs)),
	}
	for _, j := range jobs {
		if j == nil {
			return nil, errors.New("jobs: nil job in catalog")
		}
		id := j.TypeID()
		if err := security.ValidateTypeID(id); err != nil {
			return nil, errors.Wrapf(err, "jobs: type id %q", id)
		}
		if err := security.ValidateExtensionGroup(j.ExtensionGroup()); err != nil {
			return nil, errors.Wrapf(err, "jobs: %s group %q", id, j.ExtensionGroup())
		}
		if _, dup := c.jobs[id]; dup {
			return nil, errors.Wrapf(core.ErrDuplicateTypeID, "jobs: %s", id)
		}
		rule, err := schedule.Parse(j.Recurrence())
		if err != nil {
			return nil, errors.Wrapf(err, "jobs: %s default recurrence", id)
		}
		c.jobs[id] = j
		c.rules[id] = rule
		c.order = append(c.order, id)
	}
	sort.Strings(c.order)
	return c, nil
}

// MustCatalog is NewCatalog that panics on error.
func MustCatalog(jobs ...core.Job) *Catalog {
	c, err := NewCatalog(jobs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the implementation for a type id.
func (c *Catalog) Lookup(typeID string) (core.Job, bool) {
	j, ok := c.jobs[typeID]
	return j, ok
}

// Len returns the number of jobs.
func (c *Catalog) Len() int { return len(c.order) }

// TypeIDs returns the type ids in sorted order.
func (c *Catalog) TypeIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// DefaultRule returns the parsed default recurrence of a job.
func (c *Catalog) DefaultRule(typeID string) (schedule.Rule, bool) {
	r, ok := c.rules[typeID]
	return r, ok
}

// Registrations describes every job for Storage.EnsureRegistered. The
// recurrence is stored in canonical form.
func (c *Catalog) Registrations() []core.Registration {
	regs := make([]core.Registration, 0, len(c.order))
	for _, id := range c.order {
		reg := core.RegistrationFor(c.jobs[id])
		reg.Recurrence = c.rules[id].String()
		regs = append(regs, reg)
	}
	return regs
}

// ExecuteFunc is the body of a job built with NewJob.
type ExecuteFunc func(ctx context.Context, a *args.Args) error

// Definition is the static description of a job built with NewJob.
type Definition struct {
	TypeID         string
	Name           string
	Description    string
	ExtensionGroup string
	Recurrence     string
	DependsOnQueue bool
}

// NewJob adapts a function into a core.Job. An empty Name defaults to the
// type id.
func NewJob(def Definition, fn ExecuteFunc) core.Job {
	if def.Name == "" {
		def.Name = def.TypeID
	}
	return &funcJob{def: def, fn: fn}
}

type funcJob struct {
	def Definition
	fn  ExecuteFunc
}

func (j *funcJob) TypeID() string         { return j.def.TypeID }
func (j *funcJob) Name() string           { return j.def.Name }
func (j *funcJob) Description() string    { return j.def.Description }
func (j *funcJob) ExtensionGroup() string { return j.def.ExtensionGroup }
func (j *funcJob) Recurrence() string     { return j.def.Recurrence }
func (j *funcJob) DependsOnQueue() bool   { return j.def.DependsOnQueue }

func (j *funcJob) Execute(ctx context.Context, a *args.Args) error {
	if j.fn == nil {
		return nil
	}
	return j.fn(ctx, a)
}
