package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/srg/blesensor/internal/result"
	"github.com/srg/blesensor/internal/sensor"
	"github.com/srg/blesensor/pkg/config"
	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderer prints envelopes of one or more sessions. Readings and progress go
// to out, errors to errOut.
type renderer struct {
	out, errOut io.Writer
	format      string
	now         func() time.Time

	connected    *color.Color
	disconnected *color.Color
	failure      *color.Color
	dim          *color.Color
}

func newRenderer(out, errOut io.Writer, format string) (*renderer, error) {
	switch format {
	case config.OutputText, config.OutputJSON:
	default:
		return nil, fmt.Errorf("invalid output format %q: use %s or %s", format, config.OutputText, config.OutputJSON)
	}

	r := &renderer{
		out:          out,
		errOut:       errOut,
		format:       format,
		now:          time.Now,
		connected:    color.New(color.FgGreen),
		disconnected: color.New(color.FgYellow),
		failure:      color.New(color.FgRed, color.Bold),
		dim:          color.New(color.Faint),
	}
	if color.NoColor || !isTerminal(out) {
		for _, c := range []*color.Color{r.connected, r.disconnected, r.failure, r.dim} {
			c.DisableColor()
		}
	}
	return r, nil
}

// jsonLine is one envelope in --output json.
type jsonLine struct {
	Time    string         `json:"time"`
	Session string         `json:"session"`
	Kind    string         `json:"kind"`
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	Reading map[string]any `json:"reading,omitempty"`
}

// render prints env for session; kind tags the line.
func (r *renderer) render(session string, kind sensor.Kind, env result.Envelope[sensor.Reading]) error {
	if r.format == config.OutputJSON {
		line := jsonLine{
			Time:    r.now().Format(time.RFC3339Nano),
			Session: session,
			Kind:    string(kind),
			Type:    env.Kind.String(),
			Message: env.Message,
		}
		if env.IsSuccess() && env.Value != nil {
			line.Reading = env.Value.Fields()
		}
		w := r.out
		if env.IsError() {
			w = r.errOut
		}
		return json.NewEncoder(w).Encode(line)
	}

	ts := r.now().Format("15:04:05")
	switch env.Kind {
	case result.KindSuccess:
		c := r.connected
		if env.Value != nil && env.Value.ConnectionState() != sensor.Connected {
			c = r.disconnected
		}
		_, err := fmt.Fprintf(r.out, "%s %s %s\n", ts, c.Sprintf("%-14s", session), formatFields(env.Value))
		return err
	case result.KindError:
		_, err := fmt.Fprintf(r.errOut, "%s %s %s\n", ts, r.failure.Sprintf("%-14s", session), r.failure.Sprint(env.Message))
		return err
	default:
		_, err := fmt.Fprintf(r.out, "%s %s %s\n", ts, r.dim.Sprintf("%-14s", session), r.dim.Sprint(env.Message))
		return err
	}
}

// formatFields renders a reading as sorted key=value pairs.
func formatFields(reading sensor.Reading) string {
	if reading == nil {
		return ""
	}
	fields := reading.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
