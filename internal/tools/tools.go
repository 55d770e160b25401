// ABOUTME: Registers the bundled tools with a toolkit registry.
// ABOUTME: Order of registration is json, translate, markdown, github.

package tools

import (
	"slices"

	"github.com/aduitools/adui/internal/toolkit"
	"github.com/aduitools/adui/internal/tools/github"
	"github.com/aduitools/adui/internal/tools/jsontool"
	"github.com/aduitools/adui/internal/tools/markdown"
	"github.com/aduitools/adui/internal/tools/translate"
)

// All returns a fresh instance of every bundled tool in registration order.
func All() []toolkit.Plugin {
	return []toolkit.Plugin{
		jsontool.New(),
		translate.New(),
		markdown.New(),
		github.New(),
	}
}

// RegisterAll registers every bundled tool except those whose ID is listed
// in disabled. It returns the number of tools registered.
func RegisterAll(reg *toolkit.Registry, disabled ...string) int {
	n := 0
	for _, p := range All() {
		if slices.Contains(disabled, p.Meta().ID) {
			continue
		}
		reg.Register(p)
		n++
	}
	return n
}
