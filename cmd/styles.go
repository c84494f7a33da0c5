package cmd

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	// Color profile detection
	profile = colorprofile.Detect(os.Stdout, os.Environ())

	colorful = profile == colorprofile.TrueColor || profile == colorprofile.ANSI256

	// Styles with adaptive colors based on terminal capabilities
	headerStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))
		}
		return lipgloss.NewStyle().Bold(true)
	}()

	currentStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("2"))
		}
		return lipgloss.NewStyle().Bold(true)
	}()

	faintStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
		}
		return lipgloss.NewStyle().Faint(true)
	}()
)
