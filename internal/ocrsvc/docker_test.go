package ocrsvc

import (
	"context"
	"testing"
	"time"

	"github.com/vitaehq/vitae/internal/testutil"
)

func TestConfigDefaults(t *testing.T) {
	if DefaultContainerName != "vitae-paddleocr" {
		t.Errorf("unexpected default container name: %s", DefaultContainerName)
	}
	if DefaultImage != "vitaehq/paddleocr-service:latest" {
		t.Errorf("unexpected default image: %s", DefaultImage)
	}
	if DefaultPort != "8866" {
		t.Errorf("unexpected default port: %s", DefaultPort)
	}
	if ContainerPort != "8080/tcp" {
		t.Errorf("unexpected container port: %s", ContainerPort)
	}
}

func TestNewManagerDefaults(t *testing.T) {
	mgr, err := NewManager(Config{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if mgr.URL() != "http://localhost:8866" {
		t.Errorf("URL() = %q, want http://localhost:8866", mgr.URL())
	}
	if mgr.containerName != DefaultContainerName {
		t.Errorf("containerName = %q, want %q", mgr.containerName, DefaultContainerName)
	}
	if mgr.imageName != DefaultImage {
		t.Errorf("imageName = %q, want %q", mgr.imageName, DefaultImage)
	}
	if mgr.labels[Label] != "true" {
		t.Errorf("default label missing: %v", mgr.labels)
	}
}

func TestNewManagerOverrides(t *testing.T) {
	mgr, err := NewManager(Config{
		ContainerName: "custom-ocr",
		Image:         "example/ocr:dev",
		HostPort:      "9999",
		Labels:        map[string]string{"vitae-test": "TestNewManagerOverrides"},
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if mgr.URL() != "http://localhost:9999" {
		t.Errorf("URL() = %q, want http://localhost:9999", mgr.URL())
	}
	if mgr.containerName != "custom-ocr" {
		t.Errorf("containerName = %q", mgr.containerName)
	}
	// Custom labels merge with the default one.
	if mgr.labels[Label] != "true" || mgr.labels["vitae-test"] != "TestNewManagerOverrides" {
		t.Errorf("labels = %v", mgr.labels)
	}
}

func TestContainerStatusValues(t *testing.T) {
	statuses := []ContainerStatus{
		StatusRunning,
		StatusStopped,
		StatusNotFound,
		StatusUnhealthy,
		StatusStarting,
	}

	seen := make(map[ContainerStatus]bool)
	for _, s := range statuses {
		if seen[s] {
			t.Errorf("duplicate status value: %s", s)
		}
		seen[s] = true
	}
}

func TestWaitReadyUnreachable(t *testing.T) {
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	mgr, err := NewManager(Config{HostPort: port})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := mgr.WaitReady(ctx, 100*time.Millisecond); err == nil {
		t.Error("expected error when nothing is listening")
	}
}
