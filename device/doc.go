// Package device describes the chips the programmer can talk to: their
// memories, page geometry, timing and serial programming instructions.
//
// Only the ATmega32U4 as shipped on the Arduboy is supported:
//
//	p, err := device.Lookup("atmega32u4")
//	img := p.Flash.NewImage()
//	err = img.Load(firmware) // padded to 28672 bytes with 0xFF
package device
