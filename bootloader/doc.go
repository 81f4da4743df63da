// Package bootloader programs ATmega32U4 boards through the Caterina AVR109
// bootloader.
//
// # Overview
//
// A Manager runs a batch of tasks against one link:
//   - Opening the link at the chip's baud rate (or switching an open one)
//   - Identifying the bootloader and selecting the device
//   - Entering programming mode and reading the signature
//   - Running every task in order: flash/EEPROM upload or download
//   - Leaving programming mode and starting the application
//
// # Basic Usage
//
//	conn := transport.NewConn(serialport.Opener("/dev/ttyACM0"))
//
//	task, err := bootloader.OpenTask(bootloader.UploadFlash, "game.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr := bootloader.NewManager(conn)
//	report, err := mgr.Run(context.Background(), []*bootloader.Task{task}, device.ATmega32U4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Status)
//
// # Progress Tracking
//
// Track transfers with a callback or a channel:
//
//	mgr := bootloader.NewManager(conn,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %s %d%%\n", p.Phase, p.Memory, p.Percentage)
//	    }),
//	)
//
// # Cancellation
//
// Cancelling the context stops the current transfer before its next block.
// Run then returns a report with StatusCancelled and a nil error; the
// bootloader is still told to exit.
//
// # Errors
//
// Failures are *Error values carrying an ErrorKind:
//
//	if kind, ok := bootloader.KindOf(err); ok && kind == bootloader.KindIdentification {
//	    // not a Caterina bootloader, or the board is running its sketch
//	}
//
// # Lower-level Access
//
// Programmer exposes the individual protocol steps for callers that manage
// the session themselves:
//
//	prog := bootloader.New(conn)
//	_ = prog.Open()
//	id, err := prog.Identify()
//	code, err := prog.SelectDevice()
//	err = prog.Unlock()
//	n, err := prog.PagedWrite(ctx, img)
//	prog.Disable()
//
// # Logging
//
// Provide any logger implementing Logger with WithLogger; the logging
// package adapts zerolog.
package bootloader
