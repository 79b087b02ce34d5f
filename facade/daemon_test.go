package facade_test

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/core/fips"
	"github.com/momentics/hioload-rngd/facade"
	"github.com/momentics/hioload-rngd/fake"
	"github.com/momentics/hioload-rngd/internal/logging"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the loops.
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

func testConfig() *facade.Config {
	cfg := facade.DefaultConfig()
	cfg.Foreground = true
	cfg.DeviceTimeout = 5 * time.Millisecond
	cfg.ReadRetries = 1 << 20
	cfg.FeedInterval = 5 * time.Millisecond
	return cfg
}

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func waitDone(t *testing.T, d *facade.Daemon) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- d.Wait() }()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout: daemon did not stop")
		return nil
	}
}

func TestDaemonLifecycle(t *testing.T) {
	var out syncBuffer
	lg := logging.FromStd(log.New(&out, "", 0), logging.LevelInfo)
	src, _ := fake.NewLimitedSource(testKey(), 2*fips.BlockSize)
	sink := fake.NewSink()

	d, err := facade.New(testConfig(), facade.WithLogger(lg), facade.WithSource(src), facade.WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !sink.WaitLen(2*fips.BlockSize, 5*time.Second) {
		t.Fatalf("sink got %d bytes", sink.Len())
	}
	d.DumpNow()
	deadline := time.Now().Add(5 * time.Second)
	for d.Stats()["sink.bytes_sent"] != uint64(2*fips.BlockSize) {
		if time.Now().After(deadline) {
			t.Fatalf("dump not published: %v", d.Stats())
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := waitDone(t, d); err != nil {
		t.Fatalf("clean shutdown returned %v", err)
	}
	if d.Pool().FreeCount() != 3 {
		t.Errorf("free=%d after Wait", d.Pool().FreeCount())
	}
	st := d.Stats()
	if st["fips.good_blocks"] != uint64(2) || st["debug.pool.free"] != 3 {
		t.Errorf("stats %v", st)
	}
	if d.Info().StartedAt.IsZero() {
		t.Error("start time not recorded")
	}
	logs := out.String()
	for _, want := range []string{"starting up", "stats: 40000 bits received from HRNG source", "Exiting..."} {
		if !strings.Contains(logs, want) {
			t.Errorf("log lacks %q:\n%s", want, logs)
		}
	}
	if err := d.Start(); !errors.Is(err, api.ErrIllegalTransition) {
		t.Errorf("restart after Wait: %v", err)
	}
}

func TestDaemonFatalSourceError(t *testing.T) {
	src := fake.NewScriptedSource()
	src.FailWith(errors.New("hwrng gone"))
	d, err := facade.New(testConfig(), facade.WithLogger(logging.Discard()),
		facade.WithSource(src), facade.WithSink(fake.NewSink()))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("device error did not stop the daemon")
	}
	err = waitDone(t, d)
	if !errors.Is(err, api.ErrDevice) || api.ExitStatus(err) != api.ExitOSErr {
		t.Fatalf("err=%v status=%d", err, api.ExitStatus(err))
	}
	if d.Pool().FreeCount() != 3 {
		t.Errorf("free=%d", d.Pool().FreeCount())
	}
}

func TestPeriodicDump(t *testing.T) {
	var out syncBuffer
	lg := logging.FromStd(log.New(&out, "", 0), logging.LevelInfo)
	cfg := testConfig()
	cfg.StatsInterval = 10 * time.Millisecond
	src, _ := fake.NewSource(testKey())
	d, err := facade.New(cfg, facade.WithLogger(lg), facade.WithSource(src), facade.WithSink(fake.NewSink()))
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Start()
	time.Sleep(50 * time.Millisecond)
	_ = d.Shutdown()
	_ = waitDone(t, d)
	if n := strings.Count(out.String(), "FIPS 140-2 successes"); n < 3 {
		t.Errorf("%d dumps, want periodic dumps plus the final one", n)
	}
}

func TestDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.EntropySource = ""
	cfg.RandomDevice = ""
	d, err := facade.New(cfg, facade.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Start()
	deadline := time.Now().Add(5 * time.Second)
	for d.Report().BytesSent == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dry run delivered nothing")
		}
		time.Sleep(time.Millisecond)
	}
	_ = d.Shutdown()
	if err := waitDone(t, d); err != nil {
		t.Fatal(err)
	}
}

func TestMissingDevice(t *testing.T) {
	cfg := testConfig()
	cfg.EntropySource = t.TempDir() + "/no-such-hwrng"
	_, err := facade.New(cfg, facade.WithLogger(logging.Discard()), facade.WithSink(fake.NewSink()))
	if err == nil || api.ExitStatus(err) != api.ExitOSErr {
		t.Fatalf("err=%v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := facade.DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := []func(*facade.Config){
		func(c *facade.Config) { c.Buffers = 0 },
		func(c *facade.Config) { c.Entropy = 1.2 },
		func(c *facade.Config) { c.FillWatermark = 0 },
		func(c *facade.Config) { c.FillWatermark = -150 },
		func(c *facade.Config) { c.BlockSize = 4096 },
		func(c *facade.Config) { c.HRNG = "nosuch" },
		func(c *facade.Config) { c.EntropySource = "" },
		func(c *facade.Config) { c.PidFile = "" },
		func(c *facade.Config) { c.StatsInterval = 0 },
	}
	for i, m := range bad {
		cfg := facade.DefaultConfig()
		m(cfg)
		if err := cfg.Validate(); api.ExitStatus(err) != api.ExitUsage {
			t.Errorf("case %d: %v", i, err)
		}
	}
	cfg := facade.DefaultConfig()
	cfg.Foreground = true
	cfg.PidFile = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("foreground without pidfile: %v", err)
	}
}

func TestApplyProfile(t *testing.T) {
	cfg := facade.DefaultConfig()
	if err := cfg.ApplyProfile("intelfwh", 0); err != nil {
		t.Fatal(err)
	}
	if cfg.Buffers != 5 || cfg.Entropy != 0.998 {
		t.Errorf("buffers=%d entropy=%v", cfg.Buffers, cfg.Entropy)
	}

	cfg = facade.DefaultConfig()
	cfg.Buffers = 7
	if err := cfg.ApplyProfile("intelfwh", facade.SeenBuffers); err != nil {
		t.Fatal(err)
	}
	if cfg.Buffers != 7 || cfg.Entropy != 0.998 {
		t.Errorf("explicit buffers overridden: buffers=%d entropy=%v", cfg.Buffers, cfg.Entropy)
	}
	if err := cfg.ApplyProfile("bogus", 0); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("unknown profile: %v", err)
	}
	if len(facade.Profiles()) == 0 {
		t.Error("no profiles")
	}
}
