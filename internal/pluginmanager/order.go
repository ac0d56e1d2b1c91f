package pluginmanager

import (
	"container/heap"
	"sort"

	"github.com/validforge/validpipe/internal/pluginapi"
)

// ApplicablePlugins returns the plugins whose CanProcess(path) is true.
func (m *Manager) ApplicablePlugins(path string) []pluginapi.Plugin {
	var applicable []pluginapi.Plugin
	for _, plugin := range m.plugins {
		if plugin.CanProcess(path) {
			applicable = append(applicable, plugin)
		}
	}
	return applicable
}

// OrderedPlugins returns the applicable plugins for path in a deterministic
// topological order: edges to plugins not applicable to this file are
// dropped rather than treated as errors, and ties are broken by
// lexicographic plugin ID. A cycle in the induced subgraph is a PluginError.
func (m *Manager) OrderedPlugins(path string) ([]pluginapi.Plugin, error) {
	applicable := m.ApplicablePlugins(path)

	byID := make(map[string]pluginapi.Plugin, len(applicable))
	for _, p := range applicable {
		byID[p.ID()] = p
	}

	indegree := make(map[string]int, len(byID))
	children := make(map[string][]string, len(byID))
	for id := range byID {
		indegree[id] = 0
	}
	for _, p := range applicable {
		for _, dep := range p.Requires() {
			if _, ok := byID[dep]; !ok {
				continue // dependency on a non-applicable plugin: drop the edge
			}
			indegree[p.ID()]++
			children[dep] = append(children[dep], p.ID())
		}
	}

	// Lexicographically smallest available node wins at every step, giving
	// a byte-identical order across independent runs over the same set.
	ready := &idHeap{}
	for id, deg := range indegree {
		if deg == 0 {
			heap.Push(ready, id)
		}
	}

	var orderedIDs []string
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		orderedIDs = append(orderedIDs, id)

		childIDs := append([]string(nil), children[id]...)
		sort.Strings(childIDs)
		for _, child := range childIDs {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	if len(orderedIDs) != len(byID) {
		return nil, &pluginapi.PluginError{Reason: "Cycle detected in plugin dependency graph"}
	}

	ordered := make([]pluginapi.Plugin, len(orderedIDs))
	for i, id := range orderedIDs {
		ordered[i] = byID[id]
	}
	return ordered, nil
}

// Execute runs the ordered applicable plugins for path sequentially behind
// the failure barrier, threading state between them. It short-circuits
// only on a manager-level PluginError (e.g. a cycle); individual plugin
// faults are captured as results and do not stop subsequent plugins.
func (m *Manager) Execute(path string, state pluginapi.State) ([]pluginapi.PluginResult, error) {
	ordered, err := m.OrderedPlugins(path)
	if err != nil {
		return nil, err
	}

	results := make([]pluginapi.PluginResult, 0, len(ordered))
	for _, plugin := range ordered {
		results = append(results, pluginapi.Execute(plugin, path, state))
	}
	return results, nil
}

// idHeap is a min-heap of plugin IDs ordered lexicographically.
type idHeap []string

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)         { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
