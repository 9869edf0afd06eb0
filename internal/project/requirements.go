// SPDX-License-Identifier: MPL-2.0

package project

type (
	// Requirement is one dependency of the packaged project.
	// An empty Constraint means any version satisfies it.
	Requirement struct {
		Name       string
		Constraint string
	}

	// Requirements is an insertion-ordered set of Requirement keyed by name.
	// Setting an existing name replaces its constraint in place.
	Requirements struct {
		order       []string
		constraints map[string]string
	}
)

// Set adds or replaces the constraint for name.
func (r *Requirements) Set(name, constraint string) {
	if r.constraints == nil {
		r.constraints = make(map[string]string)
	}
	if _, ok := r.constraints[name]; !ok {
		r.order = append(r.order, name)
	}
	r.constraints[name] = constraint
}

// Get returns the constraint for name and whether it is present.
func (r *Requirements) Get(name string) (string, bool) {
	c, ok := r.constraints[name]
	return c, ok
}

// All returns the requirements in the order their names were first added.
func (r *Requirements) All() []Requirement {
	out := make([]Requirement, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Requirement{Name: name, Constraint: r.constraints[name]})
	}
	return out
}

// Len returns the number of distinct requirement names.
func (r *Requirements) Len() int { return len(r.order) }
