package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/openmined/dbsync/internal/config"
	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
)

// printInfo writes the resolved configuration without validating it.
// Passwords are masked.
func printInfo(w io.Writer, cfg *config.Config) error {
	var b strings.Builder

	value := func(s string) string {
		if s == "" {
			return gray.Render("(not set)")
		}
		return green.Render(s)
	}
	row := func(label, s string) {
		fmt.Fprintf(&b, "%s%s\n", gray.Render(fmt.Sprintf("%-12s", label)), s)
	}

	b.WriteString(bold.Render("dbsync configuration") + "\n")
	row("Config", value(cfg.Path))
	row("Source", value(cfg.Source))
	row("Target", value(cfg.ToLocal))
	row("Catalog", value(cfg.Catalog))
	row("Continue", value(fmt.Sprint(cfg.Continue)))
	if len(cfg.Match) > 0 {
		row("Match", value(strings.Join(cfg.Match, ", ")))
	}
	row("Log file", value(cfg.LogFile))

	for _, kind := range transport.Kinds {
		ep := cfg.Endpoint(kind)
		b.WriteString("\n" + cyan.Render(string(kind)) + "\n")
		row("Location", value(ep.Location))
		if kind == transport.KindLocal {
			continue
		}
		row("Username", value(ep.Username))
		row("Password", maskedPassword(ep.Password))
		if kind == transport.KindSFTP {
			row("Known hosts", value(ep.KnownHosts))
		}
		if kind == transport.KindS3 {
			row("Region", value(ep.Region))
			row("Endpoint", value(ep.Endpoint))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func maskedPassword(p string) string {
	switch {
	case p == "":
		return gray.Render("(not set)")
	case strings.EqualFold(p, config.Placeholder):
		return red.Render(p)
	default:
		return green.Render(utils.MaskSecret(p))
	}
}
