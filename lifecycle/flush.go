package lifecycle

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/Erotemic/line-profiler/report"
	"github.com/Erotemic/line-profiler/statsfile"
)

// Timestamp layout for the historical report copy, ISO8601 with the colons
// dropped so it is filename-safe everywhere.
const flushTimestampLayout = "2006-01-02T150405"

// Finalize renders and persists the profiling results. It runs at most
// once per controller no matter how often it is called; the exit hook goes
// through it too, so an explicit call before exit simply claims the flush.
// If profiling was never enabled it does nothing.
func (c *Controller) Finalize() error {
	var err error

	c.flushOnce.Do(func() {
		err = c.flush()
	})

	return err
}

// exitFlush is the atexit hook. Exit-time failures cannot propagate to a
// caller, so they are reported loudly instead of swallowed; a silently
// lost profiling run is worse than a noisy one.
func (c *Controller) exitFlush() {
	if err := c.Finalize(); err != nil {
		c.log.WithError(err).Error("line-profiler: exit flush failed")
	}
}

// flush renders the report, prints it, and writes three files under the
// output prefix: the binary stats dump, the text report, and a timestamped
// copy of the text report so repeated runs keep their history.
func (c *Controller) flush() error {
	sn, ok := c.Snapshot()
	if !ok {
		return nil
	}

	c.mu.Lock()
	prefix := c.outputPrefix
	recorder := c.recorder
	c.mu.Unlock()

	var buf bytes.Buffer
	err := c.renderer.Render(&buf, sn, report.Options{
		Summarize:  true,
		Sort:       true,
		StripZeros: true,
	})
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	fmt.Fprint(c.stdout, buf.String())

	timestamp := time.Now().Format(flushTimestampLayout)

	dumpPath := prefix + ".lprof"
	textPath := prefix + ".txt"
	historyPath := fmt.Sprintf("%s_%s.txt", prefix, timestamp)

	if err := statsfile.Dump(dumpPath, sn); err != nil {
		return err
	}

	if err := os.WriteFile(textPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	if err := os.WriteFile(historyPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	if recorder != nil {
		if err := recorder.RecordSnapshot(sn); err != nil {
			c.log.WithError(err).Warn("line-profiler: recording snapshot failed")
		}
	}

	for _, path := range []string{dumpPath, textPath, historyPath} {
		fmt.Fprintf(c.stdout, "Wrote profile results to %s\n", path)
	}

	return nil
}
