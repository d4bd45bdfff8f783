package rpc

import (
	"context"
	"errors"
	"testing"
)

func toFloat(t *testing.T, v any) float64 {
	t.Helper()
	f, ok := v.(float64)
	if !ok {
		t.Fatalf("expected float64, got %T (%v)", v, v)
	}
	return f
}

// TestScenarioAddDivMissing mirrors spec scenario S2: register "add" and
// "div", call add(2,3)=5, div(1,0) errors, and an unregistered method
// reports "method not found: <name>".
func TestScenarioAddDivMissing(t *testing.T) {
	e := New()
	e.Register("add", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		a := toFloat(t, params[0])
		b := toFloat(t, params[1])
		return a + b, nil
	})
	e.Register("div", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		a := toFloat(t, params[0])
		b := toFloat(t, params[1])
		if b == 0 {
			return nil, errors.New("division by zero")
		}
		return a / b, nil
	})

	resp := e.Dispatch(context.Background(), Request{Method: "add", Params: []any{2.0, 3.0}})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if toFloat(t, resp.Result) != 5 {
		t.Fatalf("expected 5, got %v", resp.Result)
	}

	resp = e.Dispatch(context.Background(), Request{Method: "div", Params: []any{1.0, 0.0}})
	if resp.Error == "" {
		t.Fatal("expected division-by-zero error")
	}

	resp = e.Dispatch(context.Background(), Request{Method: "nope"})
	if resp.Error != "method not found: nope" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

// TestResponseIsExclusive covers property 7: a response carries exactly one
// of Result or Error, never both, never neither.
func TestResponseIsExclusive(t *testing.T) {
	e := New()
	e.Register("ok", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return "fine", nil
	})
	e.Register("bad", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("broken")
	})

	okResp := e.Dispatch(context.Background(), Request{Method: "ok"})
	if okResp.Error != "" || okResp.Result == nil {
		t.Fatalf("expected result-only response, got %+v", okResp)
	}
	badResp := e.Dispatch(context.Background(), Request{Method: "bad"})
	if badResp.Error == "" || badResp.Result != nil {
		t.Fatalf("expected error-only response, got %+v", badResp)
	}
}

// TestKwargsDispatch covers property 8: a method can be invoked via kwargs.
func TestKwargsDispatch(t *testing.T) {
	e := New()
	e.Register("greet", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		name, _ := kwargs["name"].(string)
		if name == "" {
			return nil, errors.New("missing name")
		}
		return "hello " + name, nil
	})

	resp := e.Dispatch(context.Background(), Request{Method: "greet", Kwargs: map[string]any{"name": "ada"}})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Result != "hello ada" {
		t.Fatalf("unexpected result: %v", resp.Result)
	}

	resp = e.Dispatch(context.Background(), Request{Method: "greet"})
	if resp.Error == "" {
		t.Fatal("expected missing-name error")
	}
}

// TestDispatchRecoversHandlerPanic covers a handler that panics on a bad
// type assertion (the params[0].(float64) pattern used throughout this
// file, without the ", ok" form) — Dispatch must still return a Response
// with Error set rather than crashing the caller's goroutine.
func TestDispatchRecoversHandlerPanic(t *testing.T) {
	e := New()
	e.Register("crash", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return params[0].(float64), nil
	})

	resp := e.Dispatch(context.Background(), Request{Method: "crash"})
	if resp.Error == "" {
		t.Fatal("expected panic to be recovered into Response.Error")
	}
	if resp.Result != nil {
		t.Fatalf("expected no result alongside a recovered panic, got %v", resp.Result)
	}
}

func TestRegisterReplacesExistingMethod(t *testing.T) {
	e := New()
	e.Register("x", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return 1.0, nil
	})
	e.Register("x", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return 2.0, nil
	})
	resp := e.Dispatch(context.Background(), Request{Method: "x"})
	if toFloat(t, resp.Result) != 2 {
		t.Fatalf("expected replaced handler to win, got %v", resp.Result)
	}
}
