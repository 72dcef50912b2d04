package main

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amounts are Singapore dollars; the printer adds digit grouping.
var printer = message.NewPrinter(language.English)

func money(v float64) string {
	return printer.Sprintf("S$%.2f", v)
}

func simDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
