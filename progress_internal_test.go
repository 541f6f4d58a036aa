package mcp

import "testing"

func TestProgressSinksDispatch(t *testing.T) {
	sinks := newProgressSinks()
	token := ProgressToken{Value: "tok-1"}

	var gotProgress float64
	var gotTotal *float64
	var gotMessage string
	sinks.register(token, func(progress float64, total *float64, message string) {
		gotProgress = progress
		gotTotal = total
		gotMessage = message
	})

	total := 100.0
	ok := sinks.dispatch(token, 42, &total, "working")
	if !ok {
		t.Fatal("expected dispatch to find a registered handler")
	}
	if gotProgress != 42 || gotMessage != "working" || gotTotal == nil || *gotTotal != 100.0 {
		t.Errorf("handler received unexpected values: progress=%v total=%v message=%q", gotProgress, gotTotal, gotMessage)
	}
}

func TestProgressSinksDispatchUnknownToken(t *testing.T) {
	sinks := newProgressSinks()
	ok := sinks.dispatch(ProgressToken{Value: "missing"}, 1, nil, "")
	if ok {
		t.Error("expected dispatch to report false for an unregistered token")
	}
}

func TestProgressSinksDeregister(t *testing.T) {
	sinks := newProgressSinks()
	token := ProgressToken{Value: float64(7)}

	called := false
	sinks.register(token, func(float64, *float64, string) { called = true })
	sinks.deregister(token)

	if sinks.dispatch(token, 1, nil, "") {
		t.Error("expected dispatch to fail after deregister")
	}
	if called {
		t.Error("handler should not have been invoked")
	}
}

func TestProgressSinksCrossNumericTokenMatch(t *testing.T) {
	sinks := newProgressSinks()
	registerToken := ProgressToken{Value: int64(9)}
	dispatchToken := ProgressToken{Value: float64(9)}

	called := false
	sinks.register(registerToken, func(float64, *float64, string) { called = true })

	if !sinks.dispatch(dispatchToken, 1, nil, "") {
		t.Fatal("expected int64-registered and float64-dispatched tokens to match via normalizeID")
	}
	if !called {
		t.Error("handler was not invoked")
	}
}

func TestProgressSinksNilHandlerIgnored(t *testing.T) {
	sinks := newProgressSinks()
	token := ProgressToken{Value: "nil-handler"}
	sinks.register(token, nil)
	if sinks.dispatch(token, 1, nil, "") {
		t.Error("expected a nil handler registration to be a no-op")
	}
}
