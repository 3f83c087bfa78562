package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.viam.com/test"

	"github.com/steerlab/pathtracker/control"
	"github.com/steerlab/pathtracker/tracker"
	"github.com/steerlab/pathtracker/trajectory"
)

const testConstraints = `"constraints": {"max_linear_velocity": 1.0, "max_angular_velocity": 1.5}`

// syncBuffer is written by loggers and publishers running on other goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut syncBuffer
	a := NewApp(&out, &errOut)
	a.Reader = strings.NewReader(stdin)
	err := a.Run(append([]string{"pathtracker"}, args...))
	t.Log(errOut.String())
	return out.String(), err
}

func TestCheckConfigAction(t *testing.T) {
	cfgPath := writeConfig(t, `{`+testConstraints+`, "cmd_freq": 10}`)
	out, err := runApp(t, "", "--config", cfgPath, "check-config")
	test.That(t, err, test.ShouldBeNil)

	var printed map[string]interface{}
	test.That(t, json.Unmarshal([]byte(out), &printed), test.ShouldBeNil)
	test.That(t, printed["cmd_freq"], test.ShouldEqual, 10.0)
	test.That(t, printed["map_resolution"], test.ShouldEqual, 0.2)
	test.That(t, printed["goal_tolerance"], test.ShouldEqual, 0.2)

	cfgPath = writeConfig(t, `{"cmd_freq": 10}`)
	_, err = runApp(t, "", "-c", cfgPath, "check-config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "constraints")

	cfgPath = writeConfig(t, `{`+testConstraints+`}`)
	_, err = runApp(t, "", "-c", cfgPath, "--log-level", "loud", "check-config")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSmoothAction(t *testing.T) {
	pathMsg := `{"poses": [
		{"pose": {"position": {"x": 0, "y": 0}}},
		{"pose": {"position": {"x": 1, "y": 0}}},
		{"pose": {"position": {"x": 2, "y": 0}}}
	]}`

	cfgPath := writeConfig(t, `{`+testConstraints+`}`)
	out, err := runApp(t, pathMsg, "-c", cfgPath, "smooth")
	test.That(t, err, test.ShouldBeNil)
	var smoothed []trajectory.SmoothedPoint
	test.That(t, json.Unmarshal([]byte(out), &smoothed), test.ShouldBeNil)
	// map_resolution 0.2 samples every 0.1m
	test.That(t, smoothed, test.ShouldHaveLength, 21)
	test.That(t, smoothed[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, smoothed[20].X, test.ShouldAlmostEqual, 2)

	dir := t.TempDir()
	pathFile := filepath.Join(dir, "path.json")
	test.That(t, os.WriteFile(pathFile, []byte(pathMsg), 0o600), test.ShouldBeNil)
	plotFile := filepath.Join(dir, "path.png")
	curvatureFile := filepath.Join(dir, "curvature.png")

	cfgPath = writeConfig(t, `{`+testConstraints+`, "waypoint_order": "reverse"}`)
	out, err = runApp(t, "", "-c", cfgPath, "smooth", "--path", pathFile, "--plot", plotFile, "--curvature-plot", curvatureFile)
	test.That(t, err, test.ShouldBeNil)
	smoothed = nil
	test.That(t, json.Unmarshal([]byte(out), &smoothed), test.ShouldBeNil)
	test.That(t, smoothed[0].X, test.ShouldAlmostEqual, 2)
	test.That(t, smoothed[len(smoothed)-1].X, test.ShouldAlmostEqual, 0)
	for _, f := range []string{plotFile, curvatureFile} {
		info, err := os.Stat(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.Size(), test.ShouldBeGreaterThan, int64(0))
	}

	_, err = runApp(t, `{"poses": []}`, "-c", cfgPath, "smooth")
	test.That(t, err, test.ShouldBeError, trajectory.ErrTooFewPoints)
}

func TestReplayActionErrors(t *testing.T) {
	cfgPath := writeConfig(t, `{`+testConstraints+`}`)
	_, err := runApp(t, "", "-c", cfgPath, "replay")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp(t, "", "-c", cfgPath, "replay", filepath.Join(t.TempDir(), "missing.bag"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to open input file")
}

func TestFollowAction(t *testing.T) {
	cfgPath := writeConfig(t, `{`+testConstraints+`, "cmd_freq": 50}`)
	stdin := strings.Join([]string{
		`{"topic": "walkable_path", "data": {"poses": [` +
			`{"pose": {"position": {"x": 0, "y": 0}}},` +
			`{"pose": {"position": {"x": 2, "y": 0}}},` +
			`{"pose": {"position": {"x": 4, "y": 0}}}]}}`,
		`not json`,
		`{"topic": "tf", "data": {}}`,
		`{"topic": "odom_filtered", "data": {"pose": {"pose": {"position": {"x": 0.5}}}}}`,
		`{"topic": "user_contributed/cmd_vel", "data": {"linear": {"x": 0.3}}}`,
	}, "\n")

	out, err := runApp(t, stdin, "-c", cfgPath, "follow")
	test.That(t, err, test.ShouldBeNil)

	var records []tracker.Record
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var rec tracker.Record
		if err := dec.Decode(&rec); err != nil {
			test.That(t, err, test.ShouldEqual, io.EOF)
			break
		}
		records = append(records, rec)
	}
	test.That(t, len(records), test.ShouldBeGreaterThan, 1)

	topics := map[string]bool{}
	for _, rec := range records {
		topics[rec.Topic] = true
	}
	test.That(t, topics[tracker.TopicSmoothedPath], test.ShouldBeTrue)

	last := records[len(records)-1]
	test.That(t, last.Topic, test.ShouldEqual, tracker.TopicCommand)
	var cmd control.Command
	test.That(t, json.Unmarshal(last.Data, &cmd), test.ShouldBeNil)
	test.That(t, cmd.IsZero(), test.ShouldBeTrue)
}
