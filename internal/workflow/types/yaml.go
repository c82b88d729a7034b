package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NamedTask pairs a task with the key it was declared under.
type NamedTask struct {
	Name string
	Task *Task
}

// NamedTasks keeps tasks in declaration order.
type NamedTasks []NamedTask

func (n *NamedTasks) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tasks must be a mapping of task name to task", node.Line)
	}
	out := make(NamedTasks, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var t Task
		if err := node.Content[i+1].Decode(&t); err != nil {
			return fmt.Errorf("task %q: %v", node.Content[i].Value, err)
		}
		out = append(out, NamedTask{Name: node.Content[i].Value, Task: &t})
	}
	*n = out
	return nil
}

func (n NamedTasks) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, t := range n {
		var v yaml.Node
		if err := v.Encode(t.Task); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.Name}, &v)
	}
	return node, nil
}

// Lookup returns the task declared under name, or nil.
func (n NamedTasks) Lookup(name string) *Task {
	for _, t := range n {
		if t.Name == name {
			return t.Task
		}
	}
	return nil
}

// Names returns the task names in declaration order.
func (n NamedTasks) Names() []string {
	names := make([]string, 0, len(n))
	for _, t := range n {
		names = append(names, t.Name)
	}
	return names
}

// NamedInput pairs an input spec with its name.
type NamedInput struct {
	Name  string
	Input Input
}

// NamedInputs keeps inputs in declaration order so prompts appear as written.
type NamedInputs []NamedInput

func (n *NamedInputs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: input must be a mapping of input name to input", node.Line)
	}
	out := make(NamedInputs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var in Input
		if err := node.Content[i+1].Decode(&in); err != nil {
			return fmt.Errorf("input %q: %v", node.Content[i].Value, err)
		}
		out = append(out, NamedInput{Name: node.Content[i].Value, Input: in})
	}
	*n = out
	return nil
}

func (n NamedInputs) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, in := range n {
		var v yaml.Node
		if err := v.Encode(in.Input); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: in.Name}, &v)
	}
	return node, nil
}

// ActionRef is either an inline action or the name of a helper action.
type ActionRef struct {
	Name   string
	Inline *Action
}

func (r *ActionRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.Name = node.Value
		return nil
	case yaml.MappingNode:
		var a Action
		if err := node.Decode(&a); err != nil {
			return err
		}
		r.Inline = &a
		r.Name = a.Name
		return nil
	}
	return fmt.Errorf("line %d: an action must be a helper action name or an action definition", node.Line)
}

func (r ActionRef) MarshalYAML() (interface{}, error) {
	if r.Inline != nil {
		return r.Inline, nil
	}
	return r.Name, nil
}

// TaskRef is either an inline {name, task} pair or the name of a task.
type TaskRef struct {
	Name string
	Task *Task
}

type inlineTask struct {
	Name string `yaml:"name"`
	Task *Task  `yaml:"task"`
}

func (r *TaskRef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.Name = node.Value
		return nil
	case yaml.MappingNode:
		var it inlineTask
		if err := node.Decode(&it); err != nil {
			return err
		}
		if it.Name == "" {
			return fmt.Errorf("line %d: inline task requires a name", node.Line)
		}
		r.Name, r.Task = it.Name, it.Task
		return nil
	}
	return fmt.Errorf("line %d: a sub-task must be a task name or a {name, task} definition", node.Line)
}

func (r TaskRef) MarshalYAML() (interface{}, error) {
	if r.Task != nil {
		return inlineTask{Name: r.Name, Task: r.Task}, nil
	}
	return r.Name, nil
}

func (f *ForEach) UnmarshalYAML(node *yaml.Node) error {
	*f = ForEach{}
	switch node.Kind {
	case yaml.ScalarNode:
		f.Ref = node.Value
		return nil
	case yaml.SequenceNode:
		var raw []interface{}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		f.Entries = make([]map[string]interface{}, 0, len(raw))
		for _, e := range raw {
			if m, ok := e.(map[string]interface{}); ok {
				f.Entries = append(f.Entries, m)
				continue
			}
			f.Entries = append(f.Entries, map[string]interface{}{"item": e})
		}
		return nil
	}
	return fmt.Errorf("line %d: repeat.forEach must be a list", node.Line)
}

func (f ForEach) MarshalYAML() (interface{}, error) {
	if f.Entries != nil {
		return f.Entries, nil
	}
	return f.Ref, nil
}

func (u *UntilValidatorsPass) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var on bool
		if err := node.Decode(&on); err != nil || !on {
			return fmt.Errorf("line %d: repeat.untilValidatorsPass must be true or a mapping", node.Line)
		}
		*u = UntilValidatorsPass{}
		return nil
	}
	type plain UntilValidatorsPass
	return node.Decode((*plain)(u))
}
