// Command avrflash programs boards running the Caterina AVR109 bootloader,
// such as the Arduboy and Arduino Leonardo.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-avr109/bootloader"
	"github.com/moffa90/go-avr109/config"
	"github.com/moffa90/go-avr109/device"
	"github.com/moffa90/go-avr109/logging"
	"github.com/moffa90/go-avr109/simulator"
	"github.com/moffa90/go-avr109/transport"
	"github.com/moffa90/go-avr109/transport/serialport"
	"github.com/moffa90/go-avr109/transport/usbcdc"
)

// touchSettle is how long the board gets to drop off the bus after the
// 1200 baud touch.
const touchSettle = 500 * time.Millisecond

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Parse(args, stderr)
	if errors.Is(err, config.ErrShowHelp) || errors.Is(err, config.ErrShowVersion) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "avrflash: %v\n", err)
		return 2
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "avrflash: %v\n", err)
		return 2
	}

	if cfg.ListPorts {
		if err := listPorts(stdout, cfg.VID); err != nil {
			logger.Error("list ports failed", "error", err)
			return 1
		}
		return 0
	}

	profile, err := device.Lookup(cfg.Chip)
	if err != nil {
		logger.Error("unknown chip", "chip", cfg.Chip, "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := openTasks(cfg.Jobs())
	if err != nil {
		logger.Error("cannot open file", "error", err)
		return 1
	}

	opener, err := linkOpener(ctx, cfg, profile, logger)
	if err != nil {
		closeTasks(tasks)
		logger.Error("cannot reach bootloader", "error", err)
		return 1
	}
	conn := transport.NewConn(opener,
		transport.WithRingSize(cfg.RingSize),
		transport.WithConnLogger(logger),
	)

	bar := NewProgressBar(stdout, 40)
	mgr := bootloader.NewManager(conn,
		bootloader.WithLogger(logger),
		bootloader.WithProgressCallback(bar.Update),
		bootloader.WithResponseTimeout(cfg.Timeout),
	)

	report, err := mgr.Run(ctx, tasks, profile)
	bar.Finish()
	if overruns := conn.Overruns(); overruns > 0 {
		logger.Warn("receive buffer overran", "bytes", overruns)
	}
	if err != nil {
		logger.Error("programming failed", "batch_id", report.BatchID.String(), "completed", len(report.Completed), "error", err)
		return 1
	}

	printReport(stdout, report)
	if report.Status == bootloader.StatusCancelled {
		return 130
	}
	return 0
}

func newLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	if cfg.LogJSON {
		return logging.NewJSON(w, cfg.LogLevel)
	}
	return logging.New(w, cfg.LogLevel)
}

func openTasks(jobs []config.Job) ([]*bootloader.Task, error) {
	tasks := make([]*bootloader.Task, 0, len(jobs))
	for _, job := range jobs {
		task, err := bootloader.OpenTask(job.Operation, job.Path)
		if err != nil {
			closeTasks(tasks)
			return nil, fmt.Errorf("%s: %w", job.Path, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// closeTasks releases tasks that never reach Manager.Run.
func closeTasks(tasks []*bootloader.Task) {
	for _, t := range tasks {
		_ = t.Close()
	}
}

// linkOpener resets the board if asked and returns an opener for the
// bootloader's link.
func linkOpener(ctx context.Context, cfg *config.Config, profile *device.Profile, logger *logging.Logger) (transport.Opener, error) {
	switch cfg.Transport {
	case config.TransportSim:
		logger.Info("using simulated board", "chip", profile.Name)
		return simulator.New(profile).Opener(), nil

	case config.TransportUSB:
		if cfg.Reset && cfg.Port != "" {
			if err := resetBoard(ctx, cfg, profile, serialport.Opener(cfg.Port), logger); err != nil {
				return nil, err
			}
		}
		vid, pid, err := cfg.USBIDs()
		if err != nil {
			return nil, err
		}
		return usbcdc.Opener(gousb.ID(vid), gousb.ID(pid)), nil

	case config.TransportTTY:
		name, err := bootloaderPort(ctx, cfg, profile, ttyOpener, logger)
		if err != nil {
			return nil, err
		}
		return ttyOpener(name), nil

	default:
		name, err := bootloaderPort(ctx, cfg, profile, serialport.Opener, logger)
		if err != nil {
			return nil, err
		}
		return serialport.Opener(name), nil
	}
}

// bootloaderPort finds the board's port, touches it at 1200 baud when reset
// is enabled and returns the port the bootloader shows up on.
func bootloaderPort(ctx context.Context, cfg *config.Config, profile *device.Profile,
	open func(string) transport.Opener, logger *logging.Logger) (string, error) {
	name := cfg.Port
	if name == "" {
		ports, err := serialport.List(cfg.VID)
		if err != nil {
			return "", err
		}
		if len(ports) == 0 {
			return "", fmt.Errorf("no board with USB vendor ID %s found; use -port", cfg.VID)
		}
		name = ports[0].Name
		logger.Info("board detected", "port", name, "product", ports[0].Product)
	}
	if !cfg.Reset {
		return name, nil
	}

	before, err := serialport.List(cfg.VID)
	if err != nil {
		return "", err
	}
	if err := resetBoard(ctx, cfg, profile, open(name), logger); err != nil {
		return "", err
	}
	found, err := serialport.WaitForBootloader(ctx, cfg.VID, before, cfg.ResetWait)
	if err != nil {
		return "", err
	}
	logger.Info("bootloader port", "port", found)
	return found, nil
}

func resetBoard(ctx context.Context, cfg *config.Config, profile *device.Profile, open transport.Opener, logger *logging.Logger) error {
	logger.Debug("resetting board", "port", cfg.Port, "baud", profile.ResetBaudRate)
	return transport.Touch(ctx, open, profile.ResetBaudRate, touchSettle)
}

func listPorts(w io.Writer, vid string) error {
	ports, err := serialport.List(vid)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintf(w, "no USB serial ports with vendor ID %s\n", vid)
		return nil
	}
	for _, p := range ports {
		fmt.Fprintf(w, "%s\t%s:%s\t%s\t%s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
	}
	return nil
}

func printReport(w io.Writer, report *bootloader.Report) {
	if report.Identity != nil {
		fmt.Fprintf(w, "Bootloader: %s v%s, signature %s\n",
			report.Identity.SoftwareID, report.Identity.SoftwareVersion, report.Signature)
	}
	for _, r := range report.Completed {
		fmt.Fprintf(w, "  %-16s %-24s %6d bytes  %s\n", r.Operation, r.Name, r.Bytes, r.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Batch %s %s in %s\n", report.BatchID, report.Status, report.Elapsed.Round(time.Millisecond))
}
