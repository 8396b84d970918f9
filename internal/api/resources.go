package api

import (
	"net/url"
	"sort"
	"strings"
)

const (
	ResourceHighlights          = "highlights"
	ResourceInventoryHighlights = "inventory-highlights"
	ResourceReports             = "reports"

	KindComponents = "components"
	KindMoulds     = "moulds"
	KindMachines   = "machines"
	KindUsers      = "users"
	KindFactories  = "factories"
)

// Resource é um endpoint GET conhecido do backend.
type Resource struct {
	Name   string
	Path   string
	Scoped bool
	Record bool
}

var resources = map[string]Resource{
	ResourceHighlights:          {Name: ResourceHighlights, Path: "/dashboard/highlights", Scoped: true},
	ResourceInventoryHighlights: {Name: ResourceInventoryHighlights, Path: "/dashboard/highlights/inventory", Scoped: true},
	ResourceReports:             {Name: ResourceReports, Path: "/dashboard/reports", Scoped: true},
	KindComponents:              {Name: KindComponents, Path: "/components", Scoped: true, Record: true},
	KindMoulds:                  {Name: KindMoulds, Path: "/moulds", Scoped: true, Record: true},
	KindMachines:                {Name: KindMachines, Path: "/machines", Scoped: true, Record: true},
	KindUsers:                   {Name: KindUsers, Path: "/users", Scoped: true, Record: true},
	KindFactories:               {Name: KindFactories, Path: "/factory", Record: true},
}

// Lookup encontra um recurso pelo nome.
func Lookup(name string) (Resource, bool) {
	r, ok := resources[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// DashboardResources lista os resumos consultados pelo dashboard.
func DashboardResources() []string {
	return []string{ResourceHighlights, ResourceInventoryHighlights, ResourceReports}
}

// RecordKinds lista os tipos de inventário em ordem estável.
func RecordKinds() []string {
	kinds := make([]string, 0, len(resources))
	for name, r := range resources {
		if r.Record {
			kinds = append(kinds, name)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// PathFor monta o caminho com o segmento da fábrica quando o recurso é escopado.
func (r Resource) PathFor(factory string) (string, error) {
	if !r.Scoped {
		return r.Path, nil
	}
	factory = strings.TrimSpace(factory)
	if factory == "" {
		return "", ErrFactoryUnresolved
	}
	return r.Path + "/" + url.PathEscape(factory), nil
}
