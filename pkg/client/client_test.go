package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:3549", "")
	if c.BaseURL != "http://localhost:3549" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:3549", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Health(context.Background())
	if err == nil {
		t.Fatal("expected error from 503")
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("status") != "pending" {
			t.Errorf("status query: %s", r.URL.Query().Get("status"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":[{"key":"auth-task-1","status":"pending","member":"dev-1"}]}`))
	}))
	defer srv.Close()

	tasks, err := New(srv.URL, "").ListTasks(context.Background(), "pending", "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Key != "auth-task-1" {
		t.Fatalf("ListTasks: %+v", tasks)
	}
	if tasks[0].Member == nil || *tasks[0].Member != "dev-1" {
		t.Fatalf("ListTasks member: %+v", tasks[0])
	}
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/auth-task-2" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task":"auth-task-2","status":"waiting_for_dependencies","depends_on":["auth-task-1"]}`))
	}))
	defer srv.Close()

	detail, err := New(srv.URL, "").GetTask(context.Background(), "auth-task-2")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if detail.Status != "waiting_for_dependencies" || len(detail.DependsOn) != 1 {
		t.Fatalf("GetTask: %+v", detail)
	}
}

func TestCycles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cycles":["x -> y -> x"]}`))
	}))
	defer srv.Close()

	cycles, err := New(srv.URL, "").Cycles(context.Background())
	if err != nil {
		t.Fatalf("Cycles: %v", err)
	}
	if len(cycles) != 1 || cycles[0] != "x -> y -> x" {
		t.Fatalf("Cycles: %v", cycles)
	}
}

func TestCheckConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("task") != "auth-task-1" {
			t.Errorf("task query: %s", r.URL.Query().Get("task"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task":"auth-task-1","conflict":true,"members":["dev-1","dev-2"],"window":"24h0m0s"}`))
	}))
	defer srv.Close()

	rep, err := New(srv.URL, "").CheckConflict(context.Background(), "auth-task-1")
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if !rep.Conflict || len(rep.Members) != 2 {
		t.Fatalf("CheckConflict: %+v", rep)
	}
}

func TestWorkload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"members":[{"member":"dev-1","assigned":2},{"member":"dev-2","assigned":0}],"imbalance":2,"idle":["dev-2"]}`))
	}))
	defer srv.Close()

	rep, err := New(srv.URL, "").Workload(context.Background())
	if err != nil {
		t.Fatalf("Workload: %v", err)
	}
	if rep.Imbalance != 2 || len(rep.Members) != 2 || len(rep.Idle) != 1 {
		t.Fatalf("Workload: %+v", rep)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"task query parameter required"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").CheckConflict(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "task query parameter required") {
		t.Fatalf("error message: %q", err)
	}
}
