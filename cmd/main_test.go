package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hidject/internal/config"
	"hidject/internal/inject"
	"hidject/internal/metrics"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

func TestBuildTask(t *testing.T) {
	got, err := buildTask(task.KindString, []string{`hello\n`}, "de", 0)
	require.NoError(t, err)
	assert.Equal(t, task.TypeString{Text: "hello\n", Layout: "de"}, got)

	got, err = buildTask(task.KindPress, []string{"CTRL", "ALT", "DELETE"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, task.PressKeys{Combo: "CTRL ALT DELETE"}, got)

	got, err = buildTask(task.KindDelay, []string{"250ms"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, task.Delay{Duration: 250 * time.Millisecond}, got)

	got, err = buildTask(task.KindMouse, []string{"00c2", "0100"}, "", 3)
	require.NoError(t, err)
	assert.Equal(t, task.MouseReport{Capture: []byte{0x00, 0xC2, 0x01, 0x00}, Count: 3}, got)

	_, err = buildTask(task.KindDelay, []string{"-1s"}, "", 0)
	assert.Error(t, err)
	_, err = buildTask(task.KindMouse, []string{"zz"}, "", 1)
	assert.Error(t, err)
	_, err = buildTask("teleport", nil, "", 0)
	assert.ErrorIs(t, err, task.ErrUnknownKind)
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "a\tb\nc\\d", unescape(`a\tb\nc\\d`))
}

func TestValidateTask(t *testing.T) {
	cfg := *config.DefaultConfig()

	assert.NoError(t, validateTask(cfg, task.TypeString{Text: "abc"}))
	assert.NoError(t, validateTask(cfg, task.PressKeys{Combo: "GUI r"}))
	assert.Error(t, validateTask(cfg, task.PressKeys{Combo: "HYPER"}))
	assert.Error(t, validateTask(cfg, task.TypeAltString{Text: "€"}))

	cfg.Target = "aa:bb:cc:dd:ee"
	capture, err := protocol.EncodeCapture(protocol.Classic, protocol.MouseAction{XVelocity: 5})
	require.NoError(t, err)
	assert.NoError(t, validateTask(cfg, task.MouseReport{Capture: capture, Count: 1}))
	assert.Error(t, validateTask(cfg, task.MouseReport{Capture: capture[:3], Count: 1}))
}

func TestEncodeCaptureDecodesBack(t *testing.T) {
	a := protocol.MouseAction{XVelocity: -12, YVelocity: 40, ScrollVertical: 1, LeftDown: true}
	for _, v := range []protocol.Variant{protocol.Classic, protocol.FastPolling} {
		capture, err := encodeAction(v, a, true, false)
		require.NoError(t, err)
		got, err := protocol.DecodeMouse(v, capture)
		require.NoError(t, err)
		assert.Equal(t, a, got, v.String())
	}
}

func TestEncodeRadioFrameHasChecksum(t *testing.T) {
	frame, err := encodeAction(protocol.Classic, protocol.MouseAction{XVelocity: 3}, false, false)
	require.NoError(t, err)
	assert.True(t, protocol.ValidChecksum(frame))

	usb, err := encodeAction(protocol.Classic, protocol.MouseAction{XVelocity: 3, RightDown: true}, false, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03, 0x00, 0x00}, usb)
}

func TestDescribeFrame(t *testing.T) {
	frame, err := encodeAction(protocol.Classic, protocol.MouseAction{YVelocity: 7}, false, false)
	require.NoError(t, err)
	out, err := describeFrame(protocol.Classic, frame)
	require.NoError(t, err)
	assert.Contains(t, out, "type:     mouse")
	assert.Contains(t, out, "checksum: true")

	out, err = describeFrame(protocol.Classic, []byte{0x00})
	require.NoError(t, err)
	assert.NotContains(t, out, "mouse:")
}

func TestStorePathDefaultsNextToConfig(t *testing.T) {
	dir := t.TempDir()
	mgr, err := config.NewManager(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tasks.db"), storePath(mgr))

	cfg := mgr.Get()
	cfg.Store.Path = ":memory:"
	require.NoError(t, mgr.Set(cfg))
	assert.Equal(t, ":memory:", storePath(mgr))
}

func TestSetupLoggingFollowsDebug(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	cfg := *config.DefaultConfig()
	cfg.Debug = true
	setupLogging(cfg)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	cfg.Debug = false
	setupLogging(cfg)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestFetchSummary(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.StateChanged(inject.NotInitialized, inject.Idle)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		rec.Handler().ServeHTTP(w, r)
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	s, err := fetchSummary(addr, "secret")
	require.NoError(t, err)
	assert.Equal(t, "idle", s.State)

	_, err = fetchSummary(addr, "")
	assert.Error(t, err)
}
