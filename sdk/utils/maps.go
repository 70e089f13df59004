// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

// MergeConfig names, for list fields, the key identifying each element:
// {"files": "path"} merges status.files entries with the same path.
type MergeConfig map[string]string

// MergeMaps returns base overlaid with patch. Nested maps merge
// recursively, lists of maps listed in cfg merge element by element,
// anything else in patch wins. Inputs are not modified.
func MergeMaps(base, patch map[string]any, cfg MergeConfig) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}

	for k, pv := range patch {
		bv, ok := out[k]
		if !ok {
			out[k] = pv
			continue
		}
		bm, bIsMap := bv.(map[string]any)
		pm, pIsMap := pv.(map[string]any)
		if bIsMap && pIsMap {
			out[k] = MergeMaps(bm, pm, cfg)
			continue
		}
		bl, bIsList := bv.([]any)
		pl, pIsList := pv.([]any)
		if key, keyed := cfg[k]; keyed && bIsList && pIsList && allMaps(bl) && allMaps(pl) {
			out[k] = mergeListByKey(bl, pl, key, cfg)
			continue
		}
		out[k] = pv
	}
	return out
}

// mergeListByKey keeps the order of base, appending new patch elements.
// Elements without the key are kept as they are.
func mergeListByKey(base, patch []any, key string, cfg MergeConfig) []any {
	out := make([]any, 0, len(base)+len(patch))
	pos := make(map[any]int)
	for _, item := range base {
		m := item.(map[string]any)
		if id, ok := m[key]; ok {
			pos[id] = len(out)
		}
		out = append(out, m)
	}

	for _, item := range patch {
		m := item.(map[string]any)
		id, ok := m[key]
		if !ok {
			out = append(out, m)
			continue
		}
		if i, found := pos[id]; found {
			out[i] = MergeMaps(out[i].(map[string]any), m, cfg)
			continue
		}
		pos[id] = len(out)
		out = append(out, m)
	}
	return out
}

func allMaps(items []any) bool {
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}
