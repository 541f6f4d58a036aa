package mcp

import (
	"context"
	"sync"
)

// Resource is a server-exposed, URI-addressable piece of content (spec §3
// "Resource").
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType,omitempty"`
	Description string `json:"description,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

// ResourceTemplate describes a parameterized family of resource URIs
// (spec §5 supplemented resources/templates/list).
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType,omitempty"`
	Description string `json:"description,omitempty"`
}

// ResourceContents is the payload returned by resources/read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourceReader produces the current contents of a resource.
type ResourceReader func(ctx context.Context, uri string) (ResourceContents, error)

type registeredResource struct {
	resource Resource
	reader   ResourceReader
}

// resourceEmitter is the narrow surface resourceRegistry needs from the
// Session to broadcast list_changed/updated notifications, letting the
// registry stay unit-testable without a live transport.
type resourceEmitter interface {
	Notify(ctx context.Context, method string, params any) error
}

// resourceRegistry holds every resource a Server has registered, the
// templates it advertises, and the set of subscribers per uri
// (spec §3 "Resource", §4.7 "Resource mutation").
type resourceRegistry struct {
	mu        sync.Mutex
	resources map[string]*registeredResource
	templates []ResourceTemplate

	subscribers map[string]map[string]struct{} // uri -> set of subscriber ids

	emitter resourceEmitter
}

func newResourceRegistry(emitter resourceEmitter) *resourceRegistry {
	return &resourceRegistry{
		resources:   make(map[string]*registeredResource),
		subscribers: make(map[string]map[string]struct{}),
		emitter:     emitter,
	}
}

// addOrReplace registers resource, replacing any prior registration for
// the same uri. It emits resources/list_changed, and additionally
// resources/updated for that uri if it already existed (spec §4.7,
// §8 scenario 6).
func (r *resourceRegistry) addOrReplace(ctx context.Context, resource Resource, reader ResourceReader) {
	r.mu.Lock()
	_, existed := r.resources[resource.URI]
	r.resources[resource.URI] = &registeredResource{resource: resource, reader: reader}
	r.mu.Unlock()

	_ = r.emitter.Notify(ctx, NotificationResourcesListChanged, struct{}{})
	if existed {
		_ = r.emitter.Notify(ctx, NotificationResourcesUpdated, struct {
			URI string `json:"uri"`
		}{URI: resource.URI})
	}
}

// delete removes a resource and all of its subscribers, emitting
// resources/list_changed.
func (r *resourceRegistry) delete(ctx context.Context, uri string) {
	r.mu.Lock()
	delete(r.resources, uri)
	delete(r.subscribers, uri)
	r.mu.Unlock()

	_ = r.emitter.Notify(ctx, NotificationResourcesListChanged, struct{}{})
}

func (r *resourceRegistry) setTemplates(templates []ResourceTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = templates
}

func (r *resourceRegistry) list() []Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Resource, 0, len(r.resources))
	for _, rr := range r.resources {
		out = append(out, rr.resource)
	}
	return out
}

func (r *resourceRegistry) listTemplates() []ResourceTemplate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResourceTemplate(nil), r.templates...)
}

// read returns InvalidParams("Resource not found: <uri>") for an unknown
// uri (spec §4.7).
func (r *resourceRegistry) read(ctx context.Context, uri string) (ResourceContents, error) {
	r.mu.Lock()
	rr, ok := r.resources[uri]
	r.mu.Unlock()
	if !ok {
		return ResourceContents{}, &InvalidParamsError{Detail: "Resource not found: " + uri}
	}
	return rr.reader(ctx, uri)
}

// subscribe registers subscriberID as an observer of uri. Returns
// InvalidParams if uri is unknown.
func (r *resourceRegistry) subscribe(uri, subscriberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[uri]; !ok {
		return &InvalidParamsError{Detail: "Resource not found: " + uri}
	}
	set, ok := r.subscribers[uri]
	if !ok {
		set = make(map[string]struct{})
		r.subscribers[uri] = set
	}
	set[subscriberID] = struct{}{}
	return nil
}

func (r *resourceRegistry) unsubscribe(uri, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subscribers[uri]; ok {
		delete(set, subscriberID)
	}
}
