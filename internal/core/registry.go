package core

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// The registry holds every module compiled into the binary. Modules add
// themselves from init, so importing a module package is what makes its ID
// usable in gatekeep.yaml.
var registry = struct {
	sync.RWMutex
	byID map[string]ModuleInfo
}{byID: make(map[string]ModuleInfo)}

// RegisterModule adds instance's ModuleInfo to the registry. It panics on
// an empty ID, a nil constructor or a duplicate ID; all three are
// programming errors caught at init time.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	id := string(info.ID)
	switch {
	case id == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", id))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[id]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", id))
	}
	registry.byID[id] = info
}

// GetModule looks up a compiled module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[id]
	return info, ok
}

// GetModules lists compiled modules ordered by ID.
func GetModules() []ModuleInfo {
	registry.RLock()
	infos := slices.Collect(maps.Values(registry.byID))
	registry.RUnlock()

	slices.SortFunc(infos, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return infos
}

func resetRegistry() {
	registry.Lock()
	registry.byID = make(map[string]ModuleInfo)
	registry.Unlock()
}
