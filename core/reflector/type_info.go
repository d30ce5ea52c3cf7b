// Package reflector derives stable message type names from Go types.
// Names are cached so that repeated lookups on hot request paths stay cheap.
package reflector

import (
	"reflect"
	"sync"
)

// maxCacheSize bounds the type cache. The number of message types in a
// program is small, so hitting the limit simply resets the cache.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo holds the decayed type and its message type name.
type TypeInfo struct {
	Name string       // "pkg/path.TypeName" for named types, Type.String() otherwise
	Type reflect.Type // decayed type (pointers unwrapped)
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for type parameter T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// Decay strips any number of pointer indirections, so that *T, **T and T
// all name the same message type.
func Decay(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeInfoForType returns TypeInfo for the given reflect.Type after decay.
// Safe for concurrent use.
func TypeInfoForType(t reflect.Type) TypeInfo {
	t = Decay(t)
	if t == nil {
		return TypeInfo{}
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = TypeInfo{Name: nameOf(t), Type: t}

	muCache.Lock()
	if existing, ok := cache[t]; ok {
		muCache.Unlock()
		return existing
	}
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]TypeInfo)
	}
	cache[t] = ti
	muCache.Unlock()

	return ti
}

// nameOf qualifies named types with their package path. Builtins and
// unnamed composites (e.g. []int, map[string]any) use their Go spelling.
func nameOf(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
