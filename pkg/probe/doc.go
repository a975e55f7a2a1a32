// Package probe discovers UART, I2C, SPI and JTAG interfaces on an unknown
// board by blind exploration of its pins.
//
// # Overview
//
// A Prober drives a backend implementing Capability through five strategies,
// always in this order:
//
//  1. uart-host   try every host serial endpoint at each standard baud
//  2. uart-edges  capture edges per pin and estimate a baud rate
//  3. i2c         scan every (sda, scl) pair of distinct pins
//  4. spi         send a JEDEC Read-ID to every 4-tuple of distinct pins
//  5. jtag        request an IDCODE through every 4-tuple of distinct pins
//
// Each strategy stops at its first positive result. Enumeration follows the
// pin list order, outer to inner in role order, so identical inputs give
// identical reports. The SPI and JTAG searches are O(n⁴) and are bounded by
// attempt budgets (400 and 800 by default).
//
// # Usage
//
//	p, err := probe.NewProber(backend, probe.DefaultConfig(), logger)
//	if err != nil {
//		return err // configuration problems surface before probing
//	}
//	report := p.Run("board-7", recorder)
//	for _, f := range report.Findings() {
//		fmt.Println(f)
//	}
//
// # Failure model
//
// Most pin combinations are expected to fail against physically uncertain
// hardware, so Run never returns an error. Transport failures count as "no
// signal" for that candidate; other errors are added to the report log. Each
// strategy leaves a StrategyResult stating whether it found something, saw
// nothing, ran out of budget or failed outright.
//
// # Backends
//
// SimBoard is an in-memory board for tests and demos. Remote probe heads
// reached over a serial control link are provided by package probehead.
package probe
