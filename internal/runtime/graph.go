package runtime

import (
	"fmt"

	"soul/internal/compiler"
	"soul/internal/heart"
)

// node is one graph instance's runnable state — either a leaf Machine
// interpreting a processor, or a nested GraphRunner for an instance
// whose module is itself a graph.
type node struct {
	machine *Machine
	nested  *GraphRunner
}

func (n *node) step(inputs map[string]float64) map[string]float64 {
	if n.machine != nil {
		return n.machine.Step(inputs)
	}
	return n.nested.Step(inputs)
}

// GraphRunner interprets one graph module's instance tree: it steps
// every instance once per sample and forwards each Connection's source
// value into its destination's inputs for the following sample (a value
// an instance produces in sample N arrives at its destination at the
// start of sample N+1 unless DelayLength asks for more). A connection
// whose source is the graph's own input is the exception: it delivers
// the current sample's input in the same Step, and no DelayLength is
// applied to it.
//
// Grounded on the reference implementation's daisyChains/listingStack
// transfer() model: a fixed set of named signal paths re-evaluated every
// sample, generalised here from the reference's flat signal-name lookup
// to the language definition's (instance, property) connection graph.
type GraphRunner struct {
	program *compiler.Program
	module  *heart.Module

	nodes map[string]*node
	// pending holds each connection's in-flight value, delayed by
	// DelayLength samples (0 meaning it lands on the very next step).
	pending map[*heart.Connection][]float64

	Inputs  map[string]float64
	Outputs map[string]float64
}

// NewGraphRunner builds a runner for the named module in p, recursively
// instantiating a Machine or nested GraphRunner per graph instance.
func NewGraphRunner(p *compiler.Program, moduleName string) (*GraphRunner, error) {
	m := p.Module(moduleName)
	if m == nil {
		return nil, fmt.Errorf("no module named %q in program", moduleName)
	}
	if len(m.Instances) == 0 && len(m.Functions) == 0 {
		return nil, fmt.Errorf("module %q is neither a processor nor a graph with instances", moduleName)
	}

	gr := &GraphRunner{
		program: p,
		module:  m,
		nodes:   map[string]*node{},
		pending: map[*heart.Connection][]float64{},
		Inputs:  map[string]float64{},
		Outputs: map[string]float64{},
	}
	for _, inst := range m.Instances {
		target := p.Module(inst.ModuleName)
		if target == nil {
			return nil, fmt.Errorf("instance %q names unknown module %q", inst.Name, inst.ModuleName)
		}
		if len(target.Instances) > 0 {
			sub, err := NewGraphRunner(p, inst.ModuleName)
			if err != nil {
				return nil, err
			}
			gr.nodes[inst.Name] = &node{nested: sub}
			continue
		}
		mc, err := NewMachine(target)
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", inst.Name, err)
		}
		gr.nodes[inst.Name] = &node{machine: mc}
	}
	for _, c := range m.Connections {
		gr.pending[c] = make([]float64, c.DelayLength+1)
	}
	return gr, nil
}

// Step runs every instance forward by one sample, with this graph's own
// Inputs feeding instances connected to the graph boundary and this
// graph's Outputs collecting whatever instances wrote to the graph's
// own output endpoints.
func (gr *GraphRunner) Step(inputs map[string]float64) map[string]float64 {
	for k, v := range inputs {
		gr.Inputs[k] = v
	}
	gr.Outputs = map[string]float64{}

	perInstanceInputs := map[string]map[string]float64{}
	for name := range gr.nodes {
		perInstanceInputs[name] = map[string]float64{}
	}

	for _, c := range gr.module.Connections {
		queue := gr.pending[c]
		v := queue[0]
		copy(queue, queue[1:])
		queue[len(queue)-1] = 0
		gr.pending[c] = queue

		if c.SourceInstance == "" {
			v = gr.Inputs[c.SourceProperty]
		}
		if c.DestInstance == "" {
			gr.Outputs[c.DestProperty] += v
			continue
		}
		if in := perInstanceInputs[c.DestInstance]; in != nil {
			in[c.DestProperty] += v
		}
	}

	outputsByInstance := map[string]map[string]float64{}
	for name, n := range gr.nodes {
		outputsByInstance[name] = n.step(perInstanceInputs[name])
	}

	for _, c := range gr.module.Connections {
		if c.SourceInstance == "" {
			continue
		}
		out := outputsByInstance[c.SourceInstance]
		if out == nil {
			continue
		}
		queue := gr.pending[c]
		queue[len(queue)-1] += out[c.SourceProperty]
	}

	return gr.Outputs
}
