package bootloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-avr109/device"
	"github.com/moffa90/go-avr109/protocol"
)

// Link is a Transport that can be opened, closed and reconfigured.
// *transport.Conn implements it.
type Link interface {
	Transport
	Open(baud int) error
	Close() error
	IsOpen() bool
	SetBaudRate(baud int) error
	BaudRate() int
	ClearBuffer()
}

// Status is the outcome of a batch.
type Status int

const (
	StatusCompleted Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// TaskResult records a task that ran to completion.
type TaskResult struct {
	Operation Operation
	Name      string

	// Bytes is the number of bytes transferred
	Bytes int

	Elapsed time.Duration
}

// Report describes a batch. Tasks completed before a failure stay in
// Completed; nothing is rolled back.
type Report struct {
	// BatchID correlates the log lines of one batch
	BatchID uuid.UUID

	Status    Status
	Completed []TaskResult

	// Identity and Signature are set once the bootloader has answered
	Identity  *protocol.Identity
	Signature protocol.Signature

	Elapsed time.Duration
}

// Manager runs batches of tasks against one link: it opens the link,
// brings the bootloader into programming mode, runs every task in order and
// exits the bootloader.
type Manager struct {
	link   Link
	config Config
}

// NewManager creates a Manager for link.
//
// Example:
//
//	conn := transport.NewConn(serialport.Opener("/dev/ttyACM0"))
//	mgr := bootloader.NewManager(conn, bootloader.WithLogger(logger))
//	task, _ := bootloader.OpenTask(bootloader.UploadFlash, "game.hex")
//	report, err := mgr.Run(ctx, []*bootloader.Task{task}, device.ATmega32U4)
func NewManager(link Link, opts ...Option) *Manager {
	if link == nil {
		panic("link cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{link: link, config: cfg}
}

// Run executes tasks in order on profile's chip.
//
// It returns a nil error both when every task completed and when ctx was
// cancelled (Report.Status tells them apart). Any other failure aborts the
// remaining tasks and is returned as an *Error. Every task's stream is
// closed before Run returns.
func (m *Manager) Run(ctx context.Context, tasks []*Task, profile *device.Profile) (report *Report, err error) {
	startTime := time.Now()
	report = &Report{BatchID: uuid.New(), Status: StatusFailed}

	defer func() {
		for _, t := range tasks {
			if cerr := t.Close(); cerr != nil {
				m.logError("close task stream", "batch_id", report.BatchID.String(), "task", t.String(), "error", cerr)
			}
		}
		report.Elapsed = time.Since(startTime)
	}()

	if profile == nil || !device.Supported(profile) {
		return report, &Error{Kind: KindUnsupportedChip, Op: "run"}
	}
	if verr := profile.Validate(); verr != nil {
		return report, &Error{Kind: KindUnsupportedChip, Op: "run", Err: verr}
	}

	m.logInfo("batch started",
		"batch_id", report.BatchID.String(),
		"chip", profile.Name,
		"tasks", len(tasks),
	)
	reportProgress(m.config, Progress{Phase: PhaseConnecting})

	if m.link.IsOpen() {
		saved := m.link.BaudRate()
		if serr := m.link.SetBaudRate(profile.BaudRate); serr != nil {
			return report, &Error{Kind: KindTransportOpenFailed, Op: "set baud rate", Err: serr}
		}
		defer func() {
			if rerr := m.link.SetBaudRate(saved); rerr != nil {
				m.logError("restore baud rate", "batch_id", report.BatchID.String(), "baud", saved, "error", rerr)
			}
		}()
	} else {
		if oerr := m.link.Open(profile.BaudRate); oerr != nil {
			return report, &Error{Kind: KindTransportOpenFailed, Op: "open", Err: oerr}
		}
		defer func() {
			if cerr := m.link.Close(); cerr != nil {
				m.logError("close link", "batch_id", report.BatchID.String(), "error", cerr)
			}
		}()
	}
	m.link.ClearBuffer()

	cfg := m.config
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = profile.ResponseTimeout
	}
	prog := newProgrammer(m.link, cfg)
	_ = prog.Open()
	defer prog.Disable()

	reportProgress(m.config, Progress{Phase: PhaseIdentifying})

	if report.Identity, err = prog.Identify(); err != nil {
		return report, &Error{Kind: KindIdentification, Op: "identify", Err: err}
	}
	if int(report.Identity.BlockSize) < profile.Flash.PageSize {
		return report, &Error{
			Kind: KindIdentification,
			Op:   "identify",
			Err:  fmt.Errorf("%w: %d < %d bytes", ErrBufferTooSmall, report.Identity.BlockSize, profile.Flash.PageSize),
		}
	}
	if _, err = prog.SelectDevice(); err != nil {
		return report, &Error{Kind: KindUnsupportedDevice, Op: "select device", Err: err}
	}
	if err = prog.Unlock(); err != nil {
		return report, &Error{Kind: KindUnlock, Op: "unlock", Err: err}
	}
	if report.Signature, err = prog.CheckSignature(); err != nil {
		return report, &Error{Kind: KindSignature, Op: "read signature", Err: err}
	}
	if report.Signature != protocol.Signature(profile.Signature) {
		m.logError("signature does not match chip",
			"batch_id", report.BatchID.String(),
			"signature", report.Signature.String(),
			"expected", protocol.Signature(profile.Signature).String(),
		)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			report.Status = StatusCancelled
			break
		}

		result, terr := m.runTask(ctx, prog, profile, task)
		if errors.Is(terr, ErrCancelled) {
			report.Status = StatusCancelled
			break
		}
		if terr != nil {
			m.logError("task failed",
				"batch_id", report.BatchID.String(),
				"task", task.String(),
				"error", terr,
			)
			return report, terr
		}
		report.Completed = append(report.Completed, result)
	}

	if report.Status == StatusCancelled {
		m.logInfo("batch cancelled", "batch_id", report.BatchID.String(), "completed", len(report.Completed))
		return report, nil
	}

	report.Status = StatusCompleted
	reportProgress(m.config, Progress{Phase: PhaseComplete, Percentage: 100})
	m.logInfo("batch complete",
		"batch_id", report.BatchID.String(),
		"tasks", len(report.Completed),
		"elapsed", time.Since(startTime).String(),
	)
	return report, nil
}

func (m *Manager) runTask(ctx context.Context, prog *Programmer, profile *device.Profile, task *Task) (TaskResult, error) {
	defer func() { _ = task.Close() }()

	op := task.Operation
	result := TaskResult{Operation: op, Name: task.Name}
	startTime := time.Now()
	img := profile.Memory(op.Memory()).NewImage()

	if op.IsUpload() {
		data, err := task.load()
		if err != nil {
			return result, &Error{Kind: KindFileAccess, Op: task.String(), Err: err}
		}
		if err := img.Load(data); err != nil {
			return result, &Error{Kind: KindFileAccess, Op: task.String(), Err: err}
		}

		n, err := guard(func() (int, error) { return prog.PagedWrite(ctx, img) })
		if errors.Is(err, ErrCancelled) {
			return result, err
		}
		if err != nil {
			return result, &Error{Kind: KindOperationFailed, Op: task.String(), Err: err}
		}
		result.Bytes = n
	} else {
		n, err := guard(func() (int, error) { return prog.PagedRead(ctx, img) })
		if errors.Is(err, ErrCancelled) {
			return result, err
		}
		if err != nil {
			return result, &Error{Kind: KindOperationFailed, Op: task.String(), Err: err}
		}
		if err := task.store(img.Buffer); err != nil {
			return result, &Error{Kind: KindFileAccess, Op: task.String(), Err: err}
		}
		result.Bytes = n
	}

	result.Elapsed = time.Since(startTime)
	m.logDebug("task complete", "task", task.String(), "bytes", result.Bytes)
	return result, nil
}

// guard turns a panic inside a block operation into an error.
func guard(fn func() (int, error)) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during transfer: %v", r)
		}
	}()
	return fn()
}

func (m *Manager) logDebug(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (m *Manager) logInfo(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Info(msg, keysAndValues...)
	}
}

func (m *Manager) logError(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Error(msg, keysAndValues...)
	}
}
