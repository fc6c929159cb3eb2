package command

import (
	"net/http"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestSystemCommand(t *testing.T) {
	cmd := SystemCommand()
	if cmd == nil {
		t.Fatal("SystemCommand returned nil")
	}

	if cmd.Name != "system" {
		t.Errorf("Name = %q, want %q", cmd.Name, "system")
	}

	if len(cmd.Aliases) == 0 || cmd.Aliases[0] != "sys" {
		t.Error("expected alias 'sys'")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}

	requiredSubs := []string{"health", "ready"}
	for _, name := range requiredSubs {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestSystemCommand_HealthAction(t *testing.T) {
	cmd := SystemCommand()

	var healthCmd *cli.Command
	for _, sub := range cmd.Subcommands {
		if sub.Name == "health" {
			healthCmd = sub
			break
		}
	}

	if healthCmd == nil {
		t.Fatal("health subcommand not found")
	}

	if healthCmd.Action == nil {
		t.Error("health command should have an action")
	}
}

func TestSystemHealth_Success(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			errorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	ctx := testContext(server, "--output", "json")
	err := systemHealth(ctx)
	if err != nil {
		t.Errorf("systemHealth() error = %v", err)
	}
}

func TestSystemHealth_TableFormat(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	ctx := testContext(server, "--output", "table")
	err := systemHealth(ctx)
	if err != nil {
		t.Errorf("systemHealth() table format error = %v", err)
	}
}

func TestSystemHealth_Unhealthy(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"status": "unhealthy",
		})
	})

	ctx := testContext(server, "--output", "table")
	err := systemHealth(ctx)
	if err != nil {
		t.Errorf("systemHealth() should not error for unhealthy status: %v", err)
	}
}

func TestSystemReady_Success(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/ready", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"status": "ready",
		})
	})

	ctx := testContext(server, "--output", "json")
	err := systemReady(ctx)
	if err != nil {
		t.Errorf("systemReady() error = %v", err)
	}
}

func TestSystemReady_NotReady(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/ready", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusServiceUnavailable, "NOT_READY", "not ready")
	})

	ctx := testContext(server, "--output", "table")
	err := systemReady(ctx)
	if err == nil {
		t.Error("systemReady() expected error when not ready")
	}
}
