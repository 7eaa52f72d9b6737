package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Sternrassler/nsi-loader/internal/testutil"
	"github.com/Sternrassler/nsi-loader/pkg/config"
	"github.com/Sternrassler/nsi-loader/pkg/registry"
)

// setupEnv points the loader at a mock registry and blanks unrelated settings.
func setupEnv(t *testing.T, registryURL string) {
	t.Helper()
	for _, key := range []string{
		"PAGE_SIZE", "REQUEST_TIMEOUT", "MAX_PAGES", "DICTIONARIES",
		"DATABASE_URL", "REDIS_URL", "PORT", "LOG_LEVEL", "LOG_PRETTY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("USER_KEY", "test-key")
	t.Setenv("NSI_BASE_URL", registryURL)
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	want := map[string]bool{"serve": false, "sync": false, "fetch": false, "save": false, "migrate": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"config", "log-level"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}

	syncCmd, _, err := root.Find([]string{"sync"})
	if err != nil {
		t.Fatalf("Find(sync) error: %v", err)
	}
	if syncCmd.Flags().Lookup("id") == nil {
		t.Error("sync is missing --id")
	}
}

func TestFetchCmd(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetPageSizes("X", 200, 200, 47)
	setupEnv(t, mock.URL())

	out, err := execute(t, "fetch", "X")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if strings.TrimSpace(out) != "X: 447 records" {
		t.Errorf("output = %q, want %q", out, "X: 447 records")
	}
	if mock.GetRequestCount() != 3 {
		t.Errorf("requests = %d, want 3", mock.GetRequestCount())
	}
}

func TestFetchCmd_RegistryError(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetResponse("Y", 1, testutil.NewErrorResult("Справочник не найден"))
	setupEnv(t, mock.URL())

	_, err := execute(t, "fetch", "Y")

	var regErr *registry.RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("error = %v, want *registry.RegistryError", err)
	}
}

func TestFetchCmd_MissingUserKey(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1/data")
	t.Setenv("USER_KEY", "")

	_, err := execute(t, "fetch", "X")

	if !errors.Is(err, config.ErrMissingUserKey) {
		t.Errorf("error = %v, want ErrMissingUserKey", err)
	}
}

func TestFetchCmd_RequiresIdentifier(t *testing.T) {
	if _, err := execute(t, "fetch"); err == nil {
		t.Error("fetch without identifier should fail")
	}
}

func TestLogLevelFlag_Invalid(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	setupEnv(t, mock.URL())

	if _, err := execute(t, "--log-level", "loud", "fetch", "X"); err == nil {
		t.Error("invalid --log-level should fail")
	}
	if mock.GetRequestCount() != 0 {
		t.Error("no request should be made with an invalid log level")
	}
}

func TestDownloadOnlyApp_RefusesToSave(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetPageSizes("X", 3)
	setupEnv(t, mock.URL())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}

	a, err := newApp(context.Background(), cfg, false)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	defer a.Close()

	if _, err := a.service.SaveOne(context.Background(), "X"); !errors.Is(err, errNoStore) {
		t.Errorf("SaveOne() error = %v, want errNoStore", err)
	}
}
