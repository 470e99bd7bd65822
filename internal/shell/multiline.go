package shell

import (
	"luashell/internal/engine"
)

// continueChunk adds a line to the pending chunk and runs the chunk once it
// compiles. An empty line abandons the chunk.
func (s *Session) continueChunk(line string) {
	if line == "" {
		s.logger.Debug("Chunk abandoned", "bytes", len(s.chunk))
		s.chunk = ""
		s.setMode(ModeInteractive)
		return
	}

	source := s.chunk + "\n" + line
	chunk, err := s.engine.Compile(source, interactiveChunkName)
	switch {
	case err == nil:
		s.chunk = ""
		s.execute(chunk)
		s.setMode(ModeInteractive)
	case engine.IsIncomplete(err):
		s.chunk = source
	default:
		s.out.Printf("Error: %s\n", engine.Message(err))
		s.chunk = ""
		s.setMode(ModeInteractive)
	}
}
