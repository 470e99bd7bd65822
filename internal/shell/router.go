package shell

import (
	"context"
	"strings"
	"time"

	"luashell/internal/loader"
)

// Line prefixes recognised by the router.
const (
	sigilDownload = '*'
	sigilReload   = '@'
	sigilControl  = ':'
	commentMarker = "--"
)

// route dispatches a completed line typed in ModeInteractive.
func (s *Session) route(ctx context.Context, line string, now time.Time) {
	if line == "" {
		s.evaluateLine(line)
		s.needsPrompt = true
		return
	}

	switch line[0] {
	case sigilDownload:
		name := strings.TrimLeft(line[1:], " ")
		if name != "" && !loader.ValidName(name) {
			s.out.Printf("Invalid command '%s'\n", line)
			s.needsPrompt = true
			return
		}
		s.startDownload(name)

	case sigilReload:
		s.reload(ctx, line)
		s.needsPrompt = true

	case sigilControl:
		s.control(line[1:])
		s.needsPrompt = true

	default:
		if name, ok := s.headerModule(line); ok {
			s.startInlineDownload(name, line, now)
			return
		}
		s.evaluateLine(line)
		s.needsPrompt = true
	}
}

// startDownload arms a download; the prompt returns when it completes.
func (s *Session) startDownload(name string) {
	s.downloadModule = name
	s.setMode(ModeAwaitingDownload)
	s.out.Printf("Waiting for download of '%s'...\n", name)
}

func (s *Session) reload(ctx context.Context, line string) {
	name := strings.TrimLeft(line[1:], " ")
	if !loader.ValidName(name) {
		s.out.Printf("Invalid command '%s'\n", line)
		return
	}
	s.out.Printf("Reloading '%s'\n", name)
	s.loader.Load(ctx, name)
	s.out.Printf("Reload complete\n")
}

// control handles the ":<token>" callback toggles.
func (s *Session) control(cmd string) {
	switch strings.TrimSpace(cmd) {
	case "+e":
		s.execEnabled = true
		s.out.Printf("Exec loop enabled\n")
	case "-e":
		s.execEnabled = false
		s.out.Printf("Exec loop disabled\n")
	case "+h":
		s.housekeepingEnabled = true
		s.out.Printf("Housekeeping loop enabled\n")
	case "-h":
		s.housekeepingEnabled = false
		s.out.Printf("Housekeeping loop disabled\n")
	default:
		s.out.Printf("Invalid command '%s'\n", cmd)
	}
}

// headerModule recognises the first line of a pasted module file,
// "-- <name>.<ext> ...", and returns the module name.
func (s *Session) headerModule(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, commentMarker)
	if !ok {
		return "", false
	}
	rest = strings.TrimLeft(rest, " ")

	name, _, found := strings.Cut(rest, "."+s.scriptExt)
	if !found || !loader.ValidName(name) || strings.ContainsAny(name, " \t") {
		return "", false
	}
	return name, true
}

// startInlineDownload captures the rest of a pasted file, seeded with its header line.
func (s *Session) startInlineDownload(name string, line string, now time.Time) {
	s.downloadModule = name
	s.download.Reset()
	s.download.WriteString(line)
	s.download.WriteByte('\n')
	s.lastCharTime = now
	s.setMode(ModeDownloadInProgress)
	s.out.Printf("Downloading module '%s'\n", name)
}
