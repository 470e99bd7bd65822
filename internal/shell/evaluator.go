package shell

import (
	"luashell/internal/engine"
)

// interactiveChunkName names chunks compiled from typed input in error locations.
const interactiveChunkName = "stdin"

// evaluateLine runs one typed line, as an expression when possible and as a
// statement otherwise. An incomplete statement starts a multi-line chunk.
func (s *Session) evaluateLine(line string) {
	if chunk, err := s.engine.Compile("return "+line, interactiveChunkName); err == nil {
		s.execute(chunk)
		return
	}

	chunk, err := s.engine.Compile(line, interactiveChunkName)
	switch {
	case err == nil:
		s.execute(chunk)
	case engine.IsIncomplete(err):
		s.chunk = line
		s.setMode(ModeMultiline)
	default:
		s.out.Printf("Error: %s\n", engine.Message(err))
	}
}

// execute runs chunk and prints whatever it returned.
func (s *Session) execute(chunk *engine.Chunk) {
	res := s.engine.Execute(chunk)
	if !res.OK() {
		s.out.Printf("Error: %s\n", engine.Message(res.Err))
		return
	}
	if len(res.Values) == 0 {
		return
	}
	if err := s.engine.PrintValues(res.Values); err != nil {
		s.out.Printf("%s\n", err)
	}
}
