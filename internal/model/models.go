// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ModelType distinguishes locally hosted models from cloud-routed ones.
type ModelType string

const (
	ModelLocal ModelType = "local"
	ModelCloud ModelType = "cloud"
)

// Catalog holds the model names advertised by the backend, split by where
// they run.
type Catalog struct {
	Local []string
	Cloud []string
}

// IsEmpty reports whether the catalog advertises no models at all.
func (c Catalog) IsEmpty() bool {
	return len(c.Local) == 0 && len(c.Cloud) == 0
}

// Contains reports whether the catalog advertises the named model,
// in either list.
func (c Catalog) Contains(name string) bool {
	return contains(c.Local, name) || contains(c.Cloud, name)
}

// TypeOf infers the type of the named model from catalog membership.
// A model listed locally is local even if a cloud model shares the name.
// Unknown models default to cloud, matching how the backend routes them.
func (c Catalog) TypeOf(name string) ModelType {
	if contains(c.Local, name) {
		return ModelLocal
	}
	return ModelCloud
}

// FirstLocal returns the first local model, or "" if none are advertised.
func (c Catalog) FirstLocal() string {
	if len(c.Local) == 0 {
		return ""
	}
	return c.Local[0]
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// Selection is the model the user is currently chatting with.
type Selection struct {
	Name string
	Type ModelType
}

// Select builds a Selection for the named model, inferring its type from
// the catalog.
func (c Catalog) Select(name string) Selection {
	return Selection{Name: name, Type: c.TypeOf(name)}
}

// IsCloud reports whether the selection routes to a cloud provider.
func (s Selection) IsCloud() bool {
	return s.Type == ModelCloud
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
