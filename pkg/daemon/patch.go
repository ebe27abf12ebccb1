package daemon

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/go-faster/errors"
	"github.com/sony/gobreaker"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// PatchApplier sends an accumulated Patch to the cluster as a merge
// patch against the resource it was built for. ControllerRuntimePatcher
// is the default, production implementation.
type PatchApplier interface {
	Apply(ctx context.Context, resource ResourceID, patch *Patch) error
}

// ControllerRuntimePatcher applies patches through a controller-runtime
// client, with a circuit breaker guarding against a cluster that is
// persistently rejecting or timing out patch requests so a misbehaving
// API server cannot wedge every runner goroutine retrying patches in
// lockstep.
type ControllerRuntimePatcher struct {
	Client  client.Client
	breaker *gobreaker.CircuitBreaker
}

// NewControllerRuntimePatcher builds a patcher backed by c, tripping its
// breaker after ConsecutiveFailureThreshold consecutive failures.
func NewControllerRuntimePatcher(c client.Client) *ControllerRuntimePatcher {
	settings := gobreaker.Settings{
		Name:        "daemon-patch-applier",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= ConsecutiveFailureThreshold
		},
	}
	return &ControllerRuntimePatcher{
		Client:  c,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// ConsecutiveFailureThreshold trips the patch-applier circuit breaker.
const ConsecutiveFailureThreshold = 5

func (p *ControllerRuntimePatcher) Apply(ctx context.Context, resource ResourceID, patch *Patch) error {
	if patch.Empty() {
		return nil
	}
	body := patch.Build()
	raw, err := json.Marshal(body)
	if err != nil {
		return goerrors.Wrap(err, "marshal daemon patch")
	}

	_, err = p.breaker.Execute(func() (any, error) {
		obj := unstructuredFor(resource)
		return nil, p.Client.Patch(ctx, obj, client.RawPatch(types.MergePatchType, raw))
	})
	if err != nil {
		return goerrors.Wrapf(err, "apply daemon patch for %s", resource)
	}
	return nil
}

// unstructuredFor builds the minimal object controller-runtime needs to
// address a patch request: GVK plus namespaced name. The daemon core
// deliberately never imports a concrete resource's generated types, so
// every patch target is addressed as unstructured.Unstructured.
func unstructuredFor(resource ResourceID) client.Object {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(resource.GroupVersionKind)
	obj.SetNamespace(resource.Namespace)
	obj.SetName(resource.Name)
	return obj
}

// NoopPatcher discards every patch; useful for tests and for handlers
// that never produce one.
type NoopPatcher struct{}

func (NoopPatcher) Apply(context.Context, ResourceID, *Patch) error { return nil }
