package backend

import (
	"context"
	"errors"
)

// Invocation is everything a backend sees of one region.
type Invocation struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
	Input      string   `json:"input"`
	Path       string   `json:"path"`
	Line       int      `json:"line"` // 0-based call line
	Indent     string   `json:"indent"`
}

// Backend generates the output lines of a region from its invocation.
type Backend interface {
	Name() string
	Expand(ctx context.Context, inv Invocation) (string, error)
}

// ErrEmptyOutput is returned when a backend produced nothing usable.
var ErrEmptyOutput = errors.New("backend returned no output")

// Func adapts a function to the Backend interface.
type Func func(ctx context.Context, inv Invocation) (string, error)

func (f Func) Name() string {
	return "func"
}

func (f Func) Expand(ctx context.Context, inv Invocation) (string, error) {
	return f(ctx, inv)
}
