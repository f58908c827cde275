package evaluator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/transform"
)

// CollisionPolicy decides what happens when two rules write one output path
type CollisionPolicy string

const (
	// LastWriteWins keeps the final value silently
	LastWriteWins CollisionPolicy = "lastWriteWins"
	// FirstWriteWins keeps the first value silently
	FirstWriteWins CollisionPolicy = "firstWriteWins"
	// ErrorOnCollision keeps the first value and reports every later writer
	ErrorOnCollision CollisionPolicy = "error"
)

// ParseCollisionPolicy accepts the canonical tokens; empty means the default
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case "":
		return LastWriteWins, nil
	case LastWriteWins, FirstWriteWins, ErrorOnCollision:
		return CollisionPolicy(s), nil
	}
	return "", fmt.Errorf("unknown collision policy %q (expected %s, %s or %s)", s, LastWriteWins, FirstWriteWins, ErrorOnCollision)
}

// MaxDepth bounds nested branch, fragment and array levels
const MaxDepth = 32

// Options configure a single evaluation
type Options struct {
	CollisionPolicy CollisionPolicy
	// Trace records one entry per visited rule
	Trace bool
	// CustomTransforms is read during the call and never retained
	CustomTransforms transform.Table
	Logger           *zap.Logger
}

func (o Options) policy() CollisionPolicy {
	if o.CollisionPolicy == "" {
		return LastWriteWins
	}
	return o.CollisionPolicy
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
