package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestToolRegistryListAndCall(t *testing.T) {
	r := newToolRegistry()
	err := r.register(Tool{
		Name: "echo",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"message": {Type: "string"}},
			Required:   []string{"message"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return map[string]string{"echoed": in.Message}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	tools := r.list()
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tool list: %+v", tools)
	}

	result, err := r.call(context.Background(), callParams{Name: "echo", Arguments: json.RawMessage(`{"message":"hi"}`)})
	if err != nil {
		t.Fatal(err)
	}
	out, ok := result.(map[string]string)
	if !ok || out["echoed"] != "hi" {
		t.Errorf("unexpected call result: %+v", result)
	}
}

func TestToolRegistryDefaultsEmptySchema(t *testing.T) {
	r := newToolRegistry()
	if err := r.register(Tool{Name: "noop"}, func(context.Context, json.RawMessage) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.call(context.Background(), callParams{Name: "noop"}); err != nil {
		t.Errorf("expected a permissive default schema to accept empty arguments, got %v", err)
	}
}

func TestToolRegistryCallUnknownTool(t *testing.T) {
	r := newToolRegistry()
	_, err := r.call(context.Background(), callParams{Name: "missing"})
	var ipe *InvalidParamsError
	if err == nil {
		t.Fatal("expected an error for an unregistered tool")
	}
	if ip, ok := err.(*InvalidParamsError); ok {
		ipe = ip
	}
	if ipe == nil {
		t.Fatalf("expected *InvalidParamsError, got %T", err)
	}
}

func TestToolRegistryCallValidatesSchema(t *testing.T) {
	r := newToolRegistry()
	if err := r.register(Tool{
		Name: "strict",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"name"},
		},
	}, func(context.Context, json.RawMessage) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}

	_, err := r.call(context.Background(), callParams{Name: "strict", Arguments: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected schema validation to reject missing required field")
	}
	if _, ok := err.(*InvalidParamsError); !ok {
		t.Errorf("expected *InvalidParamsError, got %T: %v", err, err)
	}
}

func TestToolRegistryCallRejectsInvalidJSON(t *testing.T) {
	r := newToolRegistry()
	if err := r.register(Tool{Name: "echo"}, func(context.Context, json.RawMessage) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	_, err := r.call(context.Background(), callParams{Name: "echo", Arguments: json.RawMessage(`{not json`)})
	if _, ok := err.(*InvalidParamsError); !ok {
		t.Errorf("expected *InvalidParamsError for malformed arguments, got %T: %v", err, err)
	}
}

func TestToolRegistryUnregister(t *testing.T) {
	r := newToolRegistry()
	if err := r.register(Tool{Name: "temp"}, func(context.Context, json.RawMessage) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	r.unregister("temp")
	if len(r.list()) != 0 {
		t.Error("expected tool to be removed from the list")
	}
}

// TestToolRegistryConcurrentRegisterAndCall exercises register/list/call
// racing the way Server.RegisterTool can run after Serve has started,
// concurrently with in-flight tools/call dispatch; run with -race to
// confirm the mutex guards tools.
func TestToolRegistryConcurrentRegisterAndCall(t *testing.T) {
	r := newToolRegistry()
	noop := func(context.Context, json.RawMessage) (any, error) { return nil, nil }
	if err := r.register(Tool{Name: "base"}, noop); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = r.register(Tool{Name: "extra"}, noop)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.list()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = r.call(context.Background(), callParams{Name: "base"})
		}
	}()
	wg.Wait()
}
