// This file is part of Beans.

// Beans is free software released under the MIT License.
// See LICENSE.md file for details.

//go:build linux

package privilege

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
)

const dropChildEnv = "BEANS_TEST_DROP_CHILD"

// statusField returns the fields of a "Name:" line in a task status file.
func statusField(t *testing.T, path, name string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, name+":") {
			return strings.Fields(strings.TrimPrefix(line, name+":"))
		}
	}
	t.Fatal("no", name, "line in", path)
	return nil
}

// TestDropAllThreads runs itself in a child process, since Drop cannot be
// undone.
func TestDropAllThreads(t *testing.T) {
	if os.Getenv(dropChildEnv) == "1" {
		dropAllThreadsChild(t)
		return
	}
	if os.Geteuid() != 0 {
		t.Skip("dropping privileges needs root")
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestDropAllThreads$", "-test.v")
	cmd.Env = append(os.Environ(), dropChildEnv+"=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Error("child failed:", err, "\n", string(out))
	}
}

func dropAllThreadsChild(t *testing.T) {
	if err := syscall.Setgroups([]int{0, 4}); err != nil {
		t.Fatal(err)
	}

	// Park goroutines on their own OS threads so the process has several.
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			runtime.LockOSThread()
			started <- struct{}{}
			<-release
		}()
		<-started
	}

	if err := Drop(Account{Name: "nobody", UID: 65534, GID: 65534}); err != nil {
		t.Fatal(err)
	}

	tasks, err := filepath.Glob("/proc/self/task/*/status")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) < 5 {
		t.Error("expected at least 5 threads but got", len(tasks))
	}

	for _, task := range tasks {
		if groups := statusField(t, task, "Groups"); len(groups) != 1 || groups[0] != "65534" {
			t.Error("expected groups [65534] but got", groups, "in", task)
		}
		for _, id := range statusField(t, task, "Uid") {
			if id != "65534" {
				t.Error("expected uid 65534 but got", id, "in", task)
			}
		}
		for _, id := range statusField(t, task, "Gid") {
			if id != "65534" {
				t.Error("expected gid 65534 but got", id, "in", task)
			}
		}
	}
}
