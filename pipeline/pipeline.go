// Package pipeline provides the built-in image steps and a reusable step list.
package pipeline

import "github.com/Skryldev/doc-intake/core"

// Pipeline is an ordered, reusable list of Steps.  A configured Pipeline is
// read-only and may be shared across goroutines; run it with
// core.Processor.Process(ctx, src, p.Steps()...).
type Pipeline struct {
	steps []core.Step
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends steps to the pipeline.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// Steps returns a copy of the configured steps.
func (p *Pipeline) Steps() []core.Step {
	out := make([]core.Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Names lists the step names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Clone returns a copy whose step list can be extended independently.
func (p *Pipeline) Clone() *Pipeline {
	return &Pipeline{steps: p.Steps()}
}
