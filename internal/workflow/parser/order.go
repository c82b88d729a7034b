package parser

import (
	"sort"

	"gopkg.in/yaml.v3"

	"taskflow/internal/workflow/types"
)

// KeyOrder is the declaration order of tasks, helper tasks and inputs.
type KeyOrder struct {
	Tasks       []string
	HelperTasks []string
	Inputs      []string
}

// ParseKeyOrder reads the key order out of workflow YAML. Unparseable input
// yields an empty order.
func ParseKeyOrder(data []byte) KeyOrder {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return KeyOrder{}
	}
	doc := root.Content[0]
	if w := mappingValue(doc, "workflow"); w != nil && len(doc.Content) == 2 {
		doc = w
	}
	return KeyOrder{
		Tasks:       mappingKeys(mappingValue(doc, "tasks")),
		HelperTasks: mappingKeys(mappingValue(mappingValue(doc, "helpers"), "tasks")),
		Inputs:      mappingKeys(mappingValue(doc, "input")),
	}
}

// Apply sorts cfg's ordered collections into declaration order. Names the
// order does not know keep their relative position at the end.
func (o KeyOrder) Apply(cfg *types.Config) {
	sortTasks(cfg.Tasks, o.Tasks)
	sortTasks(cfg.Helpers.Tasks, o.HelperTasks)
	o.ApplyInputs(cfg.Input)
}

func (o KeyOrder) ApplyInputs(inputs types.NamedInputs) {
	rank := ranks(o.Inputs)
	sort.SliceStable(inputs, func(i, j int) bool {
		return rankOf(rank, inputs[i].Name) < rankOf(rank, inputs[j].Name)
	})
}

func sortTasks(tasks types.NamedTasks, order []string) {
	rank := ranks(order)
	sort.SliceStable(tasks, func(i, j int) bool {
		return rankOf(rank, tasks[i].Name) < rankOf(rank, tasks[j].Name)
	})
}

func ranks(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

func rankOf(rank map[string]int, name string) int {
	if r, ok := rank[name]; ok {
		return r
	}
	return len(rank)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func mappingKeys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}
