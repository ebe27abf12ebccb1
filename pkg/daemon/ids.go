/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package daemon supervises the long-running daemon and timer handlers
// attached to individual Kubernetes custom resources: spawning them once,
// guarding their execution, and terminating them deterministically on
// resource deletion or operator shutdown.
package daemon

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
)

// ID is an opaque identifier for a daemon, unique within a single
// ResourceMemory. It is derived from the owning handler's declared
// identifier.
type ID string

// ResourceID identifies the Kubernetes custom resource a daemon table
// belongs to.
type ResourceID struct {
	schema.GroupVersionKind
	Namespace string
	Name      string
	UID       types.UID
}

// String renders a compact, log-friendly identity.
func (r ResourceID) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s(%s)", r.Kind, r.Name, r.UID)
	}
	return fmt.Sprintf("%s/%s/%s(%s)", r.Kind, r.Namespace, r.Name, r.UID)
}
