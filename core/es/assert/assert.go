// Package assert provides named preconditions for command handlers.
// A failed Cond reports its name, so rejected commands explain themselves.
package assert

import (
	"errors"
	"fmt"
)

// ErrFailed is wrapped by every error a failed condition returns.
var ErrFailed = errors.New("assertion failed")

type CondFunc func() bool

type Cond interface {
	String() string
	Eval() bool
	Check() error
}

type cond struct {
	name  string
	cond  CondFunc
	check func() error
}

func (c *cond) Check() error   { return c.check() }
func (c *cond) String() string { return c.name }
func (c *cond) Eval() bool     { return c.cond() }

func newCond(name string, condFn CondFunc) *cond {
	return &cond{name: name, cond: condFn, check: func() error {
		if !condFn() {
			return fmt.Errorf("%w: %s", ErrFailed, name)
		}
		return nil
	}}
}

// That evaluates fn lazily on every Eval/Check.
func That(name string, fn CondFunc) Cond { return newCond(name, fn) }

func Not(c Cond) Cond {
	return newCond(fmt.Sprintf("not(%s)", c.String()), func() bool { return !c.Eval() })
}
func True(v bool, name string) Cond  { return newCond(name, func() bool { return v }) }
func False(v bool, name string) Cond { return newCond(name, func() bool { return !v }) }

// All holds when every c holds. Check reports the first failing condition.
func All(cs ...Cond) Cond {
	all := newCond("all", func() bool {
		for _, c := range cs {
			if !c.Eval() {
				return false
			}
		}
		return true
	})

	all.check = func() error {
		for _, c := range cs {
			if err := c.Check(); err != nil {
				return err
			}
		}
		return nil
	}

	return all
}

// Check checks all conditions and wraps the first failure into sentinel,
// e.g. a domain specific error.
func Check(sentinel error, cs ...Cond) error {
	if err := All(cs...).Check(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
