package resources

import (
	"fmt"
	"reflect"
	"sort"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// Merge functions combine a base value with an overlay. Maps are
// map[string]any; lists are any slice type. Neither argument is modified.

// Override returns overlay, or base when overlay is nil.
func Override(base, overlay any) any {
	if isNil(overlay) {
		return base
	}
	return overlay
}

// Extend returns the shallow union of two maps with overlay keys winning.
// For non-map values it behaves like Override.
func Extend(base, overlay any) any {
	bm, bok := base.(map[string]any)
	om, ook := overlay.(map[string]any)
	switch {
	case bok && ook:
		return unionMaps(bm, om)
	case bok && isNil(overlay):
		return unionMaps(bm, nil)
	}
	return Override(base, overlay)
}

// Isolate returns overlay and discards base.
func Isolate(_, overlay any) any {
	return overlay
}

// DeepMerge recursively unions maps, concatenates slices of the same type
// and lets overlay win for everything else.
func DeepMerge(base, overlay any) any {
	if isNil(overlay) {
		return base
	}
	bm, bok := base.(map[string]any)
	om, ook := overlay.(map[string]any)
	if bok && ook {
		out := make(map[string]any, len(bm)+len(om))
		for k, v := range bm {
			out[k] = v
		}
		for k, v := range om {
			if existing, ok := out[k]; ok {
				out[k] = DeepMerge(existing, v)
			} else {
				out[k] = v
			}
		}
		return out
	}
	if joined, ok := concatSlices(base, overlay); ok {
		return joined
	}
	return overlay
}

// Concat concatenates slices of the same type, or shallow-unions maps.
// Anything else behaves like Override.
func Concat(base, overlay any) any {
	if joined, ok := concatSlices(base, overlay); ok {
		return joined
	}
	bm, bok := base.(map[string]any)
	om, ook := overlay.(map[string]any)
	if bok && ook {
		return unionMaps(bm, om)
	}
	return Override(base, overlay)
}

// Merge combines base and overlay with the named strategy.
func Merge(strategy multitenant.MergeStrategy, base, overlay any) (any, error) {
	switch strategy {
	case multitenant.MergeOverride:
		return Override(base, overlay), nil
	case multitenant.MergeExtend:
		return Extend(base, overlay), nil
	case multitenant.MergeIsolate:
		return Isolate(base, overlay), nil
	case multitenant.MergeDeep:
		return DeepMerge(base, overlay), nil
	case multitenant.MergeConcat:
		return Concat(base, overlay), nil
	}
	return nil, fmt.Errorf("%w: %q", multitenant.ErrUnknownMergeStrategy, strategy)
}

// PriorityItem is one layer of a priority-ordered merge.
type PriorityItem struct {
	Priority int
	Data     any
}

// MergeWithPriority sorts items by ascending priority (stable) and folds
// them with strategy, so each later item is merged over the result of the
// earlier ones.
func MergeWithPriority(items []PriorityItem, strategy multitenant.MergeStrategy) (any, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", multitenant.ErrUnknownMergeStrategy, strategy)
	}

	ordered := make([]PriorityItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var result any
	for i, item := range ordered {
		if i == 0 {
			result = item.Data
			continue
		}
		merged, err := Merge(strategy, result, item.Data)
		if err != nil {
			return nil, err
		}
		result = merged
	}
	return result, nil
}

func unionMaps(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func concatSlices(base, overlay any) (any, bool) {
	bv, ov := reflect.ValueOf(base), reflect.ValueOf(overlay)
	if !bv.IsValid() || !ov.IsValid() {
		return nil, false
	}
	if bv.Kind() != reflect.Slice || ov.Kind() != reflect.Slice || bv.Type() != ov.Type() {
		return nil, false
	}
	out := reflect.MakeSlice(bv.Type(), 0, bv.Len()+ov.Len())
	out = reflect.AppendSlice(out, bv)
	out = reflect.AppendSlice(out, ov)
	return out.Interface(), true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
