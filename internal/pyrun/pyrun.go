// Package pyrun executes the embedded inference script against a pickled
// scikit-learn artifact. One call is one interpreter run: a JSON request on
// stdin, a JSON response on stdout.
package pyrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ScriptName is the file the embedded script is written to.
const ScriptName = "sklearn_inference.py"

// Runner holds a resolved interpreter and script path.
type Runner struct {
	python  string
	script  string
	timeout time.Duration
}

// New resolves a Python 3 interpreter with joblib available and makes sure
// the inference script exists in scriptDir. An explicit python path skips the
// search.
func New(python, scriptDir string, timeout time.Duration) (*Runner, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if python == "" {
		p, err := findPython()
		if err != nil {
			return nil, err
		}
		python = p
	}

	script := filepath.Join(scriptDir, ScriptName)
	if _, err := os.Stat(script); os.IsNotExist(err) {
		if err := os.MkdirAll(scriptDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create script directory: %w", err)
		}
		if err := WriteScript(script); err != nil {
			return nil, fmt.Errorf("failed to create inference script: %w", err)
		}
		log.Debug().Str("script_path", script).Msg("inference script written")
	}

	return &Runner{python: python, script: script, timeout: timeout}, nil
}

// Python returns the interpreter path in use.
func (r *Runner) Python() string { return r.python }

type envelope struct {
	Error string `json:"error"`
}

// Call sends req to the script for the given artifact and decodes the reply
// into resp.
func (r *Runner) Call(ctx context.Context, artifact string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.python, r.script, artifact)
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("python_path", r.python).
			Str("script_path", r.script).
			Str("artifact", artifact).
			Str("stderr", stderr.String()).
			Str("stdout", stdout.String()).
			Dur("timeout", r.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("python inference execution failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("inference timeout after %v", r.timeout)
		}

		var env envelope
		if json.Unmarshal(stdout.Bytes(), &env) == nil && env.Error != "" {
			return fmt.Errorf("python inference error: %s", env.Error)
		}

		msg := stderr.String()
		switch {
		case strings.Contains(msg, "No module named"):
			return fmt.Errorf("python dependency missing: %w", err)
		case strings.Contains(msg, "No such file or directory"):
			return fmt.Errorf("artifact not accessible: %w", err)
		case strings.Contains(msg, "Permission denied"):
			return fmt.Errorf("permission denied accessing artifact: %w", err)
		}
		return fmt.Errorf("python inference failed: %w, stderr: %s", err, msg)
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if env.Error != "" {
		return fmt.Errorf("python inference error: %s", env.Error)
	}

	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func findPython() (string, error) {
	var candidates []string

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates,
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		)
	}

	if execPath, err := os.Executable(); err == nil {
		dir := filepath.Dir(execPath)
		for _, root := range []string{dir, filepath.Dir(dir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}

	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, p)
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		out, err := exec.Command(c, "-c", "import sys, joblib; print('Python', sys.version)").Output()
		if err == nil && strings.Contains(string(out), "Python 3") {
			log.Info().Str("python_path", c).Msg("using python interpreter")
			return c, nil
		}
	}

	return "", fmt.Errorf("no Python 3 interpreter with joblib found")
}

// WriteScript writes the embedded inference script to path.
func WriteScript(path string) error {
	return os.WriteFile(path, []byte(inferenceScript), 0o755)
}

const inferenceScript = `#!/usr/bin/env python3
"""Loan eligibility inference over a joblib artifact (embedded)."""
import sys
import json

try:
    import joblib
    import numpy as np
except ImportError as e:
    print(json.dumps({"error": "missing dependency: %s" % e}))
    sys.exit(1)


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: sklearn_inference.py <artifact_path>"}))
        sys.exit(1)

    try:
        artifact = joblib.load(sys.argv[1])
        request = json.load(sys.stdin)
        op = request.get("op")

        if op == "predict":
            row = np.array([request["row"]], dtype=float)
            out = artifact.predict(row)
            print(json.dumps({"label": str(out[0])}))
        elif op == "transform":
            values = np.array([request["values"]], dtype=float)
            out = artifact.transform(values)
            print(json.dumps({"values": [float(v) for v in out[0]]}))
        elif op == "describe":
            n = int(getattr(artifact, "n_features_in_", 0))
            names = [str(c) for c in getattr(artifact, "feature_names_in_", [])]
            print(json.dumps({"n_features": n, "features": names}))
        else:
            raise ValueError("unknown op: %r" % op)
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
