package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

const bannerWidth = 60

var (
	lineColor = banner.ColorCyan
	textColor = banner.ColorBold + banner.ColorWhite
)

func hr(width int) string {
	return lineColor + strings.Repeat("═", width) + banner.ColorReset
}

// printBanner writes the startup banner to stderr.
func printBanner(title string, kv [][2]string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", hr(bannerWidth))
	fmt.Fprintf(os.Stderr, "%s  MERCADOBR — %s%s\n", textColor, title, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n\n", hr(bannerWidth))
	for _, line := range kv {
		fmt.Fprintf(os.Stderr, "%s  %-14s %s%s\n", textColor, line[0], line[1], banner.ColorReset)
	}
	if len(kv) > 0 {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", hr(bannerWidth))
	}
}

// printShutdownBanner writes the shutdown banner to stderr.
func printShutdownBanner() {
	fmt.Fprintf(os.Stderr, "\n%s\n", hr(42))
	fmt.Fprintf(os.Stderr, "%s  MERCADOBR — SHUTTING DOWN%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n\n", hr(42))
}
