package bootloader

import "time"

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during transfers to report progress (optional)
	ProgressCallback ProgressCallback

	// ProgressChannel receives progress without blocking; updates are
	// dropped when it is full (optional)
	ProgressChannel chan<- Progress

	// Logger is used for logging operations (optional)
	Logger Logger

	// ResponseTimeout is how long to wait for each reply.
	// Zero uses the device profile's timeout.
	ResponseTimeout time.Duration
}

// defaultConfig returns the default configuration. The response timeout is
// left to the device profile.
func defaultConfig() Config {
	return Config{}
}

// Option is a functional option for configuring the Programmer and Manager.
type Option func(*Config)

// WithProgressCallback sets a callback function to track transfer progress.
//
// Example:
//
//	mgr := bootloader.NewManager(conn,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%d%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithProgressChannel sends progress to ch. Sends never block; a full
// channel drops the update.
//
// Example:
//
//	updates := make(chan bootloader.Progress, 16)
//	mgr := bootloader.NewManager(conn, bootloader.WithProgressChannel(updates))
func WithProgressChannel(ch chan<- Progress) Option {
	return func(c *Config) {
		c.ProgressChannel = ch
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := bootloader.New(conn, bootloader.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithResponseTimeout sets how long to wait for each reply. Non-positive
// values are ignored.
//
// Example:
//
//	prog := bootloader.New(conn, bootloader.WithResponseTimeout(2*time.Second))
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ResponseTimeout = timeout
		}
	}
}
