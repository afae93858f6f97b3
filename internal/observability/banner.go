package observability

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner prints the startup header sized to the terminal.
func PrintBanner(appName string) {
	width := termWidth()
	if width > 100 {
		width = 100
	}
	rule := strings.Repeat("=", width)
	fmt.Println(colorCyan + rule + colorReset)
	fmt.Printf("%s%s  %s%s\n", colorBold, colorCyan, appName, colorReset)
	fmt.Println(colorCyan + rule + colorReset)
}
