package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachgrayio/bkvalidate/src/process"
)

func TestRecordValidation(t *testing.T) {
	m := New()
	m.RecordValidation("target", Passed)
	m.RecordValidation("target", Passed)
	m.RecordValidation("flags", Failed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validationCounter.WithLabelValues("target", Passed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationCounter.WithLabelValues("flags", Failed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.validationCounter.WithLabelValues("flags", Passed)))
}

func TestRecordEvents(t *testing.T) {
	m := New()
	m.RecordEvents(12)
	m.RecordEvents(3)
	assert.Equal(t, 15.0, testutil.ToFloat64(m.eventCounter))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordValidation("target", Passed)
	m.RecordEvents(1)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push("http://localhost:1", "job"))
	runner := process.RunnerFunc(func(dir string, argv []string) (*process.Result, error) { return &process.Result{}, nil })
	_, err := m.InstrumentRunner(runner).Run("", []string{"bazel", "query"})
	assert.NoError(t, err)
}

func TestInstrumentRunner(t *testing.T) {
	m := New()
	runner := m.InstrumentRunner(process.RunnerFunc(func(dir string, argv []string) (*process.Result, error) {
		if argv[1] == "query" {
			return &process.Result{ExitCode: 1}, nil
		} else if argv[1] == "missing" {
			return nil, errors.New("not found")
		}
		return &process.Result{}, nil
	}))
	_, err := runner.Run("", []string{"bazel", "canonicalize-flags", "--", "-c"})
	assert.NoError(t, err)
	_, err = runner.Run("", []string{"bazel", "query", "//..."})
	assert.NoError(t, err)
	_, err = runner.Run("", []string{"bazel", "missing"})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocationCounter.WithLabelValues("canonicalize-flags", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocationCounter.WithLabelValues("query", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocationCounter.WithLabelValues("missing", "false")))
}

func TestPush(t *testing.T) {
	var mutex sync.Mutex
	var paths []string
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mutex.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
		mutex.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New()
	m.RecordValidation("target", Passed)
	require.NoError(t, m.Push(server.URL, "bkvalidate"))
	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, 1, len(paths))
	assert.True(t, strings.HasPrefix(paths[0], "/metrics/job/bkvalidate"), paths[0])
	assert.NotEmpty(t, bodies[0])
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	assert.Error(t, New().Push(server.URL, "bkvalidate"))
}
