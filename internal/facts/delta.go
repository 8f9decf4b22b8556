package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether nothing was added or removed.
func (d Delta) Empty() bool {
	return d.Added.Count() == 0 && d.Removed.Count() == 0
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path + "|" + r.Library + "|" + boolKey(r.IsThirdParty)
	})
	out.Packages = diffRows(from.Packages, to.Packages, func(r PackageRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line)
	})
	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line)
	})
	out.Params = diffRows(from.Params, to.Params, func(r ParamRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line) + "|" + r.Type + "|" + boolKey(r.Local)
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line) + "|" + r.Type
	})
	out.Types = diffRows(from.Types, to.Types, func(r TypeRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line) + "|" + r.Type
	})
	out.Signals = diffRows(from.Signals, to.Signals, func(r SignalRow) string {
		return itemKey(r.Name, r.Scope, r.Doc, r.File, r.Line) + "|" + r.Type
	})

	return out
}

func itemKey(name, scope, doc, file string, line int) string {
	return name + "|" + scope + "|" + file + "|" + strconv.Itoa(line) + "|" + doc
}

// diffRows returns the rows of to whose key does not occur in from.
func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
