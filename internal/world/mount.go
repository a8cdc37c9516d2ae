package world

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Separator joins an app name and an operation name.
const Separator = "_"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

type Route struct {
	Name string
	App  string
	Op   Operation
}

// RoutingTable maps fully-qualified operation names to handlers.
type RoutingTable struct {
	routes []Route
	byName map[string]int
	apps   []string
}

// Mount composes apps into one routing table. Each operation is exposed as
// <app>_<operation>. Duplicate app names are a ConfigurationError.
func Mount(apps ...App) (*RoutingTable, error) {
	rt := &RoutingTable{byName: map[string]int{}}
	seen := map[string]bool{}
	for _, app := range apps {
		name := app.Name()
		if !validName.MatchString(name) {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("invalid app name %q", name)}
		}
		if seen[name] {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("duplicate app name %q", name)}
		}
		seen[name] = true
		rt.apps = append(rt.apps, name)
		for _, op := range app.Operations() {
			if op.Handler == nil {
				return nil, &ConfigurationError{Msg: fmt.Sprintf("%s: operation %q has no handler", name, op.Name)}
			}
			full := name + Separator + op.Name
			if _, dup := rt.byName[full]; dup {
				return nil, &ConfigurationError{Msg: fmt.Sprintf("duplicate operation %q", full)}
			}
			rt.byName[full] = len(rt.routes)
			rt.routes = append(rt.routes, Route{Name: full, App: name, Op: op})
		}
	}
	return rt, nil
}

func (rt *RoutingTable) Routes() []Route {
	return rt.routes
}

func (rt *RoutingTable) Apps() []string {
	return rt.apps
}

func (rt *RoutingTable) Lookup(name string) (Route, bool) {
	i, ok := rt.byName[name]
	if !ok {
		return Route{}, false
	}
	return rt.routes[i], true
}

// Invoke runs an operation synchronously. Every failure, including unknown
// names and malformed arguments, comes back as a *ToolOperationError.
func (rt *RoutingTable) Invoke(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	route, ok := rt.Lookup(name)
	if !ok {
		return nil, &ToolOperationError{Tool: name, Err: fmt.Errorf("unknown tool %q", name)}
	}
	args, err := DecodeArgs(raw)
	if err != nil {
		return nil, &ToolOperationError{Tool: name, Err: err}
	}
	if err := route.Op.check(args); err != nil {
		return nil, &ToolOperationError{Tool: name, Err: err}
	}
	out, err := route.Op.Handler(ctx, args)
	if err != nil {
		return nil, &ToolOperationError{Tool: name, Err: err}
	}
	return out, nil
}
