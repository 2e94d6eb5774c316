package main

import (
	"log"

	"github.com/coilworks/sledctl/gpio"
	"github.com/coilworks/sledctl/sequencer"
)

// indicatorLines maps a status color to the three LED lines. The LED has
// a common anode, so a line driven low lights that color. Anything
// unrecognized turns all three off.
func indicatorLines(c sequencer.Color) (red, green, blue bool) {
	switch c {
	case sequencer.ColorRed:
		return false, true, true
	case sequencer.ColorGreen:
		return true, false, true
	case sequencer.ColorBlue:
		return true, true, false
	default:
		return true, true, true
	}
}

func writeIndicator(bank gpio.Bank, pins PinMap, c sequencer.Color) {
	red, green, blue := indicatorLines(c)
	if err := bank.Write(pins.LEDRed, red); err != nil {
		log.Printf("LED red write failed: %v\n", err)
	}
	if err := bank.Write(pins.LEDGreen, green); err != nil {
		log.Printf("LED green write failed: %v\n", err)
	}
	if err := bank.Write(pins.LEDBlue, blue); err != nil {
		log.Printf("LED blue write failed: %v\n", err)
	}
}
