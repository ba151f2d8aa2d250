// Package export writes rendered frames to disk off the render loop. The
// core reads pixels back, hands the buffer to a single worker goroutine,
// and polls for completion once per frame; no GPU resources cross the
// goroutine boundary, only plain byte buffers.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
)

// ErrBusy is returned when a save is submitted while one is in flight.
var ErrBusy = errors.New("export: save already in progress")

// Result is the outcome of a finished save.
type Result struct {
	Path string
	Err  error
}

type job struct {
	pix    []byte
	width  int
	height int
	path   string
}

// Worker runs saves on one background goroutine. Submit hands off a
// buffer, Step polls for completion. A worker handles one save at a time;
// the caller keeps ownership of nothing after Submit returns.
type Worker struct {
	mu     sync.Mutex
	busy   bool
	done   bool
	result Result

	jobs chan job
	wg   sync.WaitGroup
}

// NewWorker starts the background goroutine.
func NewWorker() *Worker {
	w := &Worker{jobs: make(chan job, 1)}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for j := range w.jobs {
		err := writePNG(j)
		w.mu.Lock()
		w.result = Result{Path: j.path, Err: err}
		w.done = true
		w.mu.Unlock()
	}
}

// Submit queues a save of an RGBA buffer. The buffer must be
// width*height*4 bytes and must not be modified until the matching Step
// reports completion. Fails with ErrBusy while a previous save has not
// been collected.
func (w *Worker) Submit(pix []byte, width, height int, path string) error {
	if len(pix) != width*height*4 {
		return fmt.Errorf("export: buffer is %d bytes, want %d", len(pix), width*height*4)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	w.done = false
	// The channel has room for one job and busy guarantees it is empty.
	w.jobs <- job{pix: pix, width: width, height: height, path: path}
	return nil
}

// Step polls for a finished save. Call once per frame; when it reports
// true the worker is idle again and the result is final.
func (w *Worker) Step() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.done {
		return Result{}, false
	}
	w.done = false
	w.busy = false
	return w.result, true
}

// Busy reports whether a save is in flight or uncollected.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Close stops the worker after any in-flight save finishes.
func (w *Worker) Close() {
	close(w.jobs)
	w.wg.Wait()
}

func writePNG(j job) error {
	img := &image.RGBA{
		Pix:    j.pix,
		Stride: j.width * 4,
		Rect:   image.Rect(0, 0, j.width, j.height),
	}
	f, err := os.Create(j.path)
	if err != nil {
		return fmt.Errorf("export: create %q: %w", j.path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("export: encode %q: %w", j.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %q: %w", j.path, err)
	}
	return nil
}
