package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func noopHandler(context.Context, map[string]any) (*Result, error) {
	return &Result{Summary: "ok"}, nil
}

func TestRegisterRejectsBadDescriptors(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Descriptor{Name: "", Handler: noopHandler}); err == nil {
		t.Error("empty name should fail")
	}
	if err := r.Register(Descriptor{Name: "a"}); err == nil {
		t.Error("nil handler should fail")
	}
	if err := r.Register(Descriptor{Name: "a", Handler: noopHandler}); err != nil {
		t.Fatalf("valid registration failed: %v", err)
	}
	if err := r.Register(Descriptor{Name: "a", Handler: noopHandler}); err == nil {
		t.Error("duplicate name should fail")
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		if err := r.Register(Descriptor{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("registering %s: %v", name, err)
		}
	}

	listed := r.List()
	if len(listed) != len(names) {
		t.Fatalf("expected %d descriptors, got %d", len(names), len(listed))
	}
	for i, d := range listed {
		if d.Name != names[i] {
			t.Errorf("position %d: expected %s, got %s", i, names[i], d.Name)
		}
	}

	// Listing twice with no registration in between yields the same set.
	again := r.List()
	for i := range listed {
		if listed[i].Name != again[i].Name {
			t.Error("repeated List calls differ")
		}
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestInvokeRoutesToHandler(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{
		Name: "echo",
		Handler: func(_ context.Context, args map[string]any) (*Result, error) {
			return &Result{Summary: fmt.Sprintf("got %v", args["x"])}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := r.Invoke(context.Background(), "echo", map[string]any{"x": 7})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Summary != "got 7" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestInvokePropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("backend exploded")
	err := r.Register(Descriptor{
		Name: "boom",
		Handler: func(context.Context, map[string]any) (*Result, error) {
			return nil, boom
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = r.Invoke(context.Background(), "boom", nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestArgHelpers(t *testing.T) {
	t.Run("intArg", func(t *testing.T) {
		n, err := intArg(map[string]any{"hours": float64(3)}, "hours", 1, 1, 168)
		if err != nil || n != 3 {
			t.Errorf("expected 3, got %d (%v)", n, err)
		}

		n, err = intArg(map[string]any{}, "hours", 1, 1, 168)
		if err != nil || n != 1 {
			t.Errorf("expected fallback 1, got %d (%v)", n, err)
		}

		if _, err := intArg(map[string]any{"hours": 1.5}, "hours", 1, 1, 168); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("fractional value should fail, got %v", err)
		}
		if _, err := intArg(map[string]any{"hours": float64(500)}, "hours", 1, 1, 168); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("out-of-range value should fail, got %v", err)
		}
		if _, err := intArg(map[string]any{"hours": "three"}, "hours", 1, 1, 168); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("non-numeric value should fail, got %v", err)
		}
	})

	t.Run("stringArg", func(t *testing.T) {
		s, err := stringArg(map[string]any{"container": "db"}, "container", "", true)
		if err != nil || s != "db" {
			t.Errorf("expected db, got %q (%v)", s, err)
		}

		if _, err := stringArg(map[string]any{}, "container", "", true); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("missing required value should fail, got %v", err)
		}
		if _, err := stringArg(map[string]any{"container": ""}, "container", "", true); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("empty required value should fail, got %v", err)
		}
		if _, err := stringArg(map[string]any{"container": 5}, "container", "", false); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("non-string value should fail, got %v", err)
		}

		s, err = stringArg(map[string]any{}, "container", "default", false)
		if err != nil || s != "default" {
			t.Errorf("expected fallback, got %q (%v)", s, err)
		}
	})
}
