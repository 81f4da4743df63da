// Package config provides configuration for the avrflash command.
//
// Configuration is parsed from CLI flags with defaults, optionally layered
// on a JSON file given with -config. Flags on the command line always win
// over the file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moffa90/go-avr109/bootloader"
	"github.com/moffa90/go-avr109/device"
)

const (
	// Version is the avrflash version
	Version = "0.3.0"

	// Transports selectable with -transport
	TransportSerial = "serial"
	TransportTTY    = "tty"
	TransportUSB    = "usb"
	TransportSim    = "sim"

	// Default values for CLI flags
	defaultTransport = TransportSerial
	defaultChip      = "atmega32u4"
	defaultVID       = "2341"
	defaultPID       = "0036"
	defaultReset     = true
	defaultResetWait = 10 * time.Second
	defaultRingSize  = 1024
	defaultLogLevel  = "info"

	// Validation constraints
	minRingSize = 64
	maxRingSize = 1 << 20

	// EEPROMExt marks positional files that go to EEPROM
	EEPROMExt = ".eeprom"
)

var (
	// ErrInvalidTransport is returned for an unknown -transport value
	ErrInvalidTransport = errors.New("transport must be one of: serial, tty, usb, sim")
	// ErrMissingPort is returned when a transport needs -port and none was given
	ErrMissingPort = errors.New("port is required for the tty transport")
	// ErrInvalidUSBID is returned when -vid or -pid is not a 16-bit hex number
	ErrInvalidUSBID = errors.New("vid and pid must be 4-digit hex numbers")
	// ErrUnknownChip is returned when -chip names no supported profile
	ErrUnknownChip = errors.New("unsupported chip")
	// ErrInvalidTimeout is returned when a duration flag is negative
	ErrInvalidTimeout = errors.New("timeout and reset-wait must not be negative")
	// ErrInvalidRingSize is returned when ring-size is out of range
	ErrInvalidRingSize = errors.New("ring-size must be between 64 and 1048576")
	// ErrInvalidLogLevel is returned when log level is not recognized
	ErrInvalidLogLevel = errors.New("log-level must be one of: debug, info, warn, error")
	// ErrNoTasks is returned when nothing was asked for
	ErrNoTasks = errors.New("no files given; use -upload-flash, -upload-eeprom, -download-flash, -download-eeprom, -task or positional files")
	// ErrInvalidTask is returned when a -task value is not OPERATION=FILE
	ErrInvalidTask = errors.New("task must be OPERATION=FILE")
	// ErrShowHelp is returned when -help flag is requested
	ErrShowHelp = errors.New("help requested")
	// ErrShowVersion is returned when -version flag is requested
	ErrShowVersion = errors.New("version requested")
)

// Config holds all configuration values for avrflash.
type Config struct {
	// Link configuration
	Transport string
	Port      string
	VID       string
	PID       string
	RingSize  int

	// Board configuration
	Chip      string
	Reset     bool
	ResetWait time.Duration
	Timeout   time.Duration

	// Tasks
	UploadFlash    string
	UploadEEPROM   string
	DownloadFlash  string
	DownloadEEPROM string
	Tasks          []Job
	Files          []string

	// Logging configuration
	LogLevel string
	LogJSON  bool

	// ConfigFile is the JSON file the values were layered on, if any
	ConfigFile string

	// ListPorts lists candidate serial ports instead of programming
	ListPorts bool

	// Internal flags
	showHelp    bool
	showVersion bool
}

// Job is one file operation requested on the command line.
type Job struct {
	Operation bootloader.Operation
	Path      string
}

// fileConfig is the JSON layout of a -config file. Absent keys keep the
// defaults.
type fileConfig struct {
	Transport      *string `json:"transport"`
	Port           *string `json:"port"`
	VID            *string `json:"vid"`
	PID            *string `json:"pid"`
	RingSize       *int    `json:"ring_size"`
	Chip           *string `json:"chip"`
	Reset          *bool   `json:"reset"`
	ResetWait      *string `json:"reset_wait"`
	Timeout        *string `json:"timeout"`
	UploadFlash    *string `json:"upload_flash"`
	UploadEEPROM   *string `json:"upload_eeprom"`
	DownloadFlash  *string `json:"download_flash"`
	DownloadEEPROM *string `json:"download_eeprom"`
	Tasks          []string `json:"tasks"`
	LogLevel       *string `json:"log_level"`
	LogJSON        *bool   `json:"log_json"`
}

func defaults() *Config {
	return &Config{
		Transport: defaultTransport,
		VID:       defaultVID,
		PID:       defaultPID,
		RingSize:  defaultRingSize,
		Chip:      defaultChip,
		Reset:     defaultReset,
		ResetWait: defaultResetWait,
		LogLevel:  defaultLogLevel,
	}
}

// Parse parses CLI flags into a Config struct.
// It returns the parsed Config or an error if validation fails.
// If -help or -version is requested, it prints the output and returns
// ErrShowHelp or ErrShowVersion.
func Parse(args []string, output io.Writer) (*Config, error) {
	c := defaults()
	fs := newFlagSet(c, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.ConfigFile != "" {
		// Parse again on top of the file so explicit flags override it
		path := c.ConfigFile
		c = defaults()
		if err := c.load(path); err != nil {
			return nil, err
		}
		fs = newFlagSet(c, output)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		c.ConfigFile = path
	}
	c.Files = fs.Args()

	// Handle -help
	if c.showHelp {
		printHelp(output)
		return nil, ErrShowHelp
	}

	// Handle -version
	if c.showVersion {
		printVersion(output)
		return nil, ErrShowVersion
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func newFlagSet(c *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("avrflash", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printHelp(output) }

	// Link flags
	fs.StringVar(&c.Transport, "transport", c.Transport, "Link backend (serial, tty, usb, sim)")
	fs.StringVar(&c.Port, "port", c.Port, "Serial port name (serial: auto-detected when empty)")
	fs.StringVar(&c.VID, "vid", c.VID, "USB vendor ID in hex (usb transport, port detection)")
	fs.StringVar(&c.PID, "pid", c.PID, "USB product ID of the bootloader in hex (usb transport)")
	fs.IntVar(&c.RingSize, "ring-size", c.RingSize, "Receive buffer size in bytes")

	// Board flags
	fs.StringVar(&c.Chip, "chip", c.Chip, "Target chip")
	fs.BoolVar(&c.Reset, "reset", c.Reset, "Reboot the board into the bootloader with a 1200 baud touch")
	fs.DurationVar(&c.ResetWait, "reset-wait", c.ResetWait, "How long to wait for the bootloader port after a reset")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Reply timeout (0 = chip default)")

	// Task flags
	fs.StringVar(&c.UploadFlash, "upload-flash", c.UploadFlash, "Write a .hex, .arduboy or raw file to flash")
	fs.StringVar(&c.UploadEEPROM, "upload-eeprom", c.UploadEEPROM, "Write a .hex or raw file to EEPROM")
	fs.StringVar(&c.DownloadFlash, "download-flash", c.DownloadFlash, "Save flash to a .hex or raw file")
	fs.StringVar(&c.DownloadEEPROM, "download-eeprom", c.DownloadEEPROM, "Save EEPROM to a .hex or raw file")
	fs.Func("task", "OPERATION=FILE, repeatable; runs in the order given", func(v string) error {
		job, err := ParseJob(v)
		if err != nil {
			return err
		}
		c.Tasks = append(c.Tasks, job)
		return nil
	})

	// Logging flags
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "Write logs as JSON lines")

	// Special flags
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "JSON configuration file")
	fs.BoolVar(&c.ListPorts, "list", false, "List serial ports and exit")
	fs.BoolVar(&c.showHelp, "help", false, "Show help message")
	fs.BoolVar(&c.showVersion, "version", false, "Show version information")
	return fs
}

// load applies the JSON file at path on top of c.
func (c *Config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Transport, fc.Transport)
	setString(&c.Port, fc.Port)
	setString(&c.VID, fc.VID)
	setString(&c.PID, fc.PID)
	setString(&c.Chip, fc.Chip)
	setString(&c.UploadFlash, fc.UploadFlash)
	setString(&c.UploadEEPROM, fc.UploadEEPROM)
	setString(&c.DownloadFlash, fc.DownloadFlash)
	setString(&c.DownloadEEPROM, fc.DownloadEEPROM)
	setString(&c.LogLevel, fc.LogLevel)
	for _, v := range fc.Tasks {
		job, err := ParseJob(v)
		if err != nil {
			return fmt.Errorf("config tasks: %w", err)
		}
		c.Tasks = append(c.Tasks, job)
	}
	if fc.RingSize != nil {
		c.RingSize = *fc.RingSize
	}
	if fc.Reset != nil {
		c.Reset = *fc.Reset
	}
	if fc.LogJSON != nil {
		c.LogJSON = *fc.LogJSON
	}
	if err := setDuration(&c.ResetWait, fc.ResetWait, "reset_wait"); err != nil {
		return err
	}
	return setDuration(&c.Timeout, fc.Timeout, "timeout")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("config %s: %w", key, err)
	}
	*dst = d
	return nil
}

// validate checks that all configuration values are within valid ranges
func (c *Config) validate() error {
	switch c.Transport {
	case TransportSerial, TransportTTY, TransportUSB, TransportSim:
	default:
		return ErrInvalidTransport
	}

	if c.Transport == TransportTTY && c.Port == "" {
		return ErrMissingPort
	}

	if _, _, err := c.USBIDs(); err != nil {
		return err
	}

	if _, err := device.Lookup(c.Chip); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownChip, c.Chip)
	}

	if c.Timeout < 0 || c.ResetWait < 0 {
		return ErrInvalidTimeout
	}

	if c.RingSize < minRingSize || c.RingSize > maxRingSize {
		return ErrInvalidRingSize
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		return ErrInvalidLogLevel
	}

	if !c.ListPorts && len(c.Jobs()) == 0 {
		return ErrNoTasks
	}

	return nil
}

// USBIDs returns the parsed vendor and product IDs.
func (c *Config) USBIDs() (vid, pid uint16, err error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(c.VID), "0x"), 16, 16)
	if err != nil {
		return 0, 0, ErrInvalidUSBID
	}
	p, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(c.PID), "0x"), 16, 16)
	if err != nil {
		return 0, 0, ErrInvalidUSBID
	}
	return uint16(v), uint16(p), nil
}

// ParseJob parses an OPERATION=FILE task such as "download-eeprom=save.bin".
func ParseJob(s string) (Job, error) {
	name, path, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return Job{}, fmt.Errorf("%w: %q", ErrInvalidTask, s)
	}
	op, err := bootloader.ParseOperation(strings.TrimSpace(name))
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return Job{Operation: op, Path: path}, nil
}

// Jobs returns the requested operations in the order they run: the four
// single-file flags first (uploads before downloads), then -task entries
// in the order given (config file entries before command line ones), then
// positional files as uploads. A positional file ending in ".eeprom" goes
// to EEPROM, anything else to flash.
func (c *Config) Jobs() []Job {
	var jobs []Job
	add := func(op bootloader.Operation, path string) {
		if path != "" {
			jobs = append(jobs, Job{Operation: op, Path: path})
		}
	}

	add(bootloader.UploadFlash, c.UploadFlash)
	add(bootloader.UploadEEPROM, c.UploadEEPROM)
	add(bootloader.DownloadFlash, c.DownloadFlash)
	add(bootloader.DownloadEEPROM, c.DownloadEEPROM)
	jobs = append(jobs, c.Tasks...)

	for _, f := range c.Files {
		if strings.EqualFold(filepath.Ext(f), EEPROMExt) {
			add(bootloader.UploadEEPROM, f)
		} else {
			add(bootloader.UploadFlash, f)
		}
	}
	return jobs
}

// printHelp prints usage information
func printHelp(w io.Writer) {
	fmt.Fprintf(w, `avrflash - program AVR109 (Caterina) bootloaders

USAGE:
    avrflash [FLAGS] [FILE...]

Positional files are uploaded: "*.eeprom" to EEPROM, anything else
(.hex, .arduboy, raw binary) to flash.

FLAGS:
    -transport <NAME>         serial, tty, usb or sim (default: %s)
    -port <NAME>              Serial port; auto-detected for serial when empty
    -vid <HEX>                USB vendor ID (default: %s)
    -pid <HEX>                USB product ID of the bootloader (default: %s)
    -ring-size <N>            Receive buffer size (default: %d)
    -chip <NAME>              Target chip (default: %s)
    -reset                    1200 baud touch before programming (default: %t)
    -reset-wait <DURATION>    Wait for the bootloader port (default: %s)
    -timeout <DURATION>       Reply timeout, 0 = chip default
    -upload-flash <FILE>      Write FILE to flash
    -upload-eeprom <FILE>     Write FILE to EEPROM
    -download-flash <FILE>    Save flash to FILE (.hex for Intel HEX)
    -download-eeprom <FILE>   Save EEPROM to FILE (.hex for Intel HEX)
    -task <OPERATION=FILE>    Repeatable, runs in order; OPERATION is
                              upload-flash, upload-eeprom, download-flash
                              or download-eeprom
    -log-level <LEVEL>        Log level: debug, info, warn, error (default: %s)
    -log-json                 Write logs as JSON lines
    -config <FILE>            JSON configuration file; flags override it
    -list                     List serial ports and exit
    -help                     Show this help message
    -version                  Show version information

EXAMPLES:
    # Flash a game, resetting the board first
    avrflash -port /dev/ttyACM0 game.arduboy

    # Back up flash and EEPROM
    avrflash -download-flash flash.hex -download-eeprom eeprom.bin

    # Keep the old game, then flash a new one
    avrflash -task download-flash=old.hex -task upload-flash=game.hex

    # Try it without hardware
    avrflash -transport sim game.hex
`,
		defaultTransport, defaultVID, defaultPID, defaultRingSize, defaultChip,
		defaultReset, defaultResetWait, defaultLogLevel)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "avrflash %s\n", Version)
}
