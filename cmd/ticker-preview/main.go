// Command ticker-preview runs the overlay engine on a terminal instead of a
// video stream. Frames come from a synthetic clock; the optional JSON-RPC
// server accepts the same commands as the relay.
//
// Keys: m adds a demo message, c clears demo messages, q or Esc quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	videotextrelay "github.com/zhenyouluo/video-text-relay"
	"github.com/zhenyouluo/video-text-relay/internal/config"
	"github.com/zhenyouluo/video-text-relay/internal/control"
	"github.com/zhenyouluo/video-text-relay/internal/terminal"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (.yaml or .toml)")
	text := flag.String("text", "", "Initial ticker text")
	httpAddr := flag.String("http", "", "JSON-RPC listen address (e.g. :8080)")
	fps := flag.Int("fps", 30, "Synthetic frame rate")
	logPath := flag.String("log", "ticker-preview.log", "Log file (the terminal is taken by the preview)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := run(*configPath, *text, *httpAddr, *fps, *logPath, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "ticker-preview:", err)
		os.Exit(1)
	}
}

func run(configPath, text, httpAddr string, fps int, logPath string, debug bool) error {
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel})))

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if text != "" {
		cfg.Overlay.Ticker.Text = text
	}
	overlayCfg, err := cfg.OverlayEngineConfig()
	if err != nil {
		return err
	}
	// Cells, not pixels
	overlayCfg.Style.ShadowOffset = 1

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	term := terminal.NewScreen(screen)
	overlay, err := videotextrelay.NewOverlay(overlayCfg, term)
	if err != nil {
		return err
	}

	if httpAddr == "" {
		httpAddr = cfg.Control.HTTPAddr
	}
	if httpAddr != "" {
		cb := control.OverlayCallbacks(overlay)
		cb.OnGetStatus = func() map[string]interface{} {
			return map[string]interface{}{"overlay": overlay.Stats()}
		}
		server := control.NewServer(control.ServerConfig{Addr: httpAddr, Callbacks: cb})
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	p := &preview{screen: screen, term: term, overlay: overlay}
	return p.loop(time.Second / time.Duration(fps))
}

// preview owns the terminal and the render context.
type preview struct {
	screen  tcell.Screen
	term    *terminal.Screen
	overlay *videotextrelay.Overlay

	width, height int
	demo          []string
}

func (p *preview) loop(interval time.Duration) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	tick := time.NewTicker(interval)
	defer tick.Stop()

	// Synthetic presentation timestamps, one interval per frame
	var frame uint64
	for {
		select {
		case ev := <-events:
			if quit := p.handle(ev); quit {
				return nil
			}
		case <-tick.C:
			p.render(frame * uint64(interval))
			frame++
		}
	}
}

func (p *preview) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		p.screen.Sync()
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC:
			return true
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return true
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'm':
			p.addDemo()
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'c':
			for _, key := range p.demo {
				p.overlay.RemoveMessage(key)
			}
			p.demo = p.demo[:0]
		}
	}
	return false
}

func (p *preview) addDemo() {
	n := len(p.demo) + 1
	row := float64(1 + (n*3)%max(p.height-2, 1))
	key, err := p.overlay.AddMessage(videotextrelay.MessageSpec{
		Text:           fmt.Sprintf("demo message #%d", n),
		Loops:          2,
		Y:              &row,
		ScrollDuration: 6 + float64(n%4),
	})
	if err != nil {
		slog.Warn("preview: demo message rejected", "error", err)
		return
	}
	p.demo = append(p.demo, key)
}

func (p *preview) render(timestamp uint64) {
	w, h := p.term.Size()
	if w != p.width || h != p.height {
		p.width, p.height = w, h
		p.overlay.OnGeometry(w, h)
	}

	p.term.Clear()
	p.overlay.Render(timestamp, p.term)

	stats := p.overlay.Stats()
	status := fmt.Sprintf(" %dx%d  frames %d  messages %d  retired %d  [m] add  [c] clear  [q] quit",
		w, h, stats.FramesRendered, stats.ActiveMessages, stats.RetiredMessages)
	p.term.DrawText(0, float64(h-1), status, 0, statusColor)

	p.term.Show()
}

var statusColor = color.RGBA{R: 128, G: 128, B: 128, A: 255}
