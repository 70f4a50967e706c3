package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/tabprune/internal/api"
)

// isolate points every path helper at a temporary home and clears the
// global flags.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home+"/.config")
	for _, key := range []string{"TABPRUNE_DATA_DIR", "TABPRUNE_LISTEN_ADDR", "TABPRUNE_DEBUGGER_URL", "TABPRUNE_LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	oldDB, oldAddr := dbPath, listenAddr
	dbPath, listenAddr = "", "127.0.0.1:1"
	t.Cleanup(func() { dbPath, listenAddr = oldDB, oldAddr })
	return home
}

// resetFlags restores a command's flags to their defaults.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

// run executes RootCmd with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(append([]string{}, args...))
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})
	err := RootCmd.Execute()
	return out.String(), err
}

// fakeDaemon answers the message API with canned replies per action.
type fakeDaemon struct {
	mu       sync.Mutex
	replies  map[string]any
	requests []api.Request
}

func startFakeDaemon(t *testing.T, replies map[string]any) *fakeDaemon {
	t.Helper()
	fd := &fakeDaemon{replies: replies}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/message", func(w http.ResponseWriter, r *http.Request) {
		var req api.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fd.mu.Lock()
		fd.requests = append(fd.requests, req)
		reply, ok := fd.replies[req.Action]
		fd.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Unknown action: " + req.Action})
			return
		}
		json.NewEncoder(w).Encode(reply)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	listenAddr = strings.TrimPrefix(srv.URL, "http://")
	return fd
}

func (fd *fakeDaemon) received() []api.Request {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return append([]api.Request(nil), fd.requests...)
}
