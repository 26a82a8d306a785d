package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"blip/internal/app/chat"
	"blip/internal/app/registry"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
	plainColor = color.New(color.Reset)
)

// parseHexColor parses "#rrggbb" or "#rgb".
func parseHexColor(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

func isBold(weight string) bool {
	if weight == "bold" || weight == "bolder" {
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

// styleColor maps a name style onto a terminal color. Unknown colors render plain.
func styleColor(style *registry.NameStyle) *color.Color {
	if style == nil {
		return plainColor
	}

	c := color.New()
	if r, g, b, ok := parseHexColor(style.Color); ok {
		c = color.RGB(r, g, b)
	}
	if isBold(style.FontWeight) {
		c.Add(color.Bold)
	}
	return c
}

func renderName(name string, style *registry.NameStyle) string {
	return styleColor(style).Sprint(name)
}

func formatMessage(m chat.Message) string {
	return fmt.Sprintf("%s %s: %s",
		dimColor.Sprint(m.CreatedAt.Local().Format("15:04")),
		renderName(m.AuthorName, m.NameStyle),
		m.Message)
}
