// Package router implements the engine's only schema transformation:
// renaming (schema, table) and individual columns on the way to the
// destination. Anything beyond name routing is out of scope.
package router

import "sync"

// TableRoute renames one (schema, table) pair.
type TableRoute struct {
	DstSchema string
	DstTable  string
}

// Router maps source identifiers to destination identifiers. Zero value is
// a passthrough router (every name maps to itself).
type Router struct {
	mu      sync.RWMutex
	tables  map[string]TableRoute          // "schema.table" -> route
	columns map[string]map[string]string   // "schema.table" -> src col -> dst col
}

// New creates an empty (passthrough) Router.
func New() *Router {
	return &Router{
		tables:  make(map[string]TableRoute),
		columns: make(map[string]map[string]string),
	}
}

func key(schema, table string) string { return schema + "." + table }

// AddTableRoute registers a (schema, table) rename.
func (r *Router) AddTableRoute(srcSchema, srcTable, dstSchema, dstTable string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[key(srcSchema, srcTable)] = TableRoute{DstSchema: dstSchema, DstTable: dstTable}
}

// AddColumnRoute registers a column rename scoped to one source table.
func (r *Router) AddColumnRoute(srcSchema, srcTable, srcCol, dstCol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(srcSchema, srcTable)
	if r.columns[k] == nil {
		r.columns[k] = make(map[string]string)
	}
	r.columns[k][srcCol] = dstCol
}

// Route implements sqlbuilder.Router.
func (r *Router) Route(srcSchema, srcTable string) (string, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if route, ok := r.tables[key(srcSchema, srcTable)]; ok {
		return route.DstSchema, route.DstTable
	}
	return srcSchema, srcTable
}

// RouteColumn implements sqlbuilder.Router.
func (r *Router) RouteColumn(srcSchema, srcTable, col string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cols, ok := r.columns[key(srcSchema, srcTable)]; ok {
		if dst, ok := cols[col]; ok {
			return dst
		}
	}
	return col
}
