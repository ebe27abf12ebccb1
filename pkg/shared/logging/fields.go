// Package logging provides the operator's structured-logging field
// builder and logr/zap logger construction.
package logging

import "time"

// Fields is a chainable builder for structured log fields. Each setter
// returns the same map for further chaining; it is not safe for
// concurrent mutation, matching the short-lived, single-goroutine use a
// call site builds one for.
type Fields map[string]interface{}

// NewFields returns an empty Fields builder.
func NewFields() Fields { return Fields{} }

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(version string) Fields {
	f["version"] = version
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// KeysAndValues flattens Fields into the alternating key/value slice
// logr.Logger.Info/Error expect as their variadic tail.
func (f Fields) KeysAndValues() []interface{} {
	out := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

// KubernetesFields builds the standard field set for a cluster-facing
// operation against a single resource.
func KubernetesFields(operation, resourceType, name, namespace string) Fields {
	f := NewFields().Component("kubernetes").Operation(operation).Resource(resourceType, name)
	if namespace != "" {
		f["namespace"] = namespace
	}
	return f
}

// DaemonFields builds the standard field set for a daemon/timer
// lifecycle log line.
func DaemonFields(kind, daemonID string) Fields {
	return NewFields().Component("daemon").Custom("kind", kind).Custom("daemon_id", daemonID)
}
