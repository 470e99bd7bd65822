package shell

import (
	"context"

	"luashell/internal/engine"
)

// anonymousChunkName names a downloaded chunk that has no module name.
const anonymousChunkName = "download"

// finishDownload consumes the download buffer. A named download is saved and
// loaded as a module; an anonymous one is run once and never stored.
func (s *Session) finishDownload(ctx context.Context) {
	data := append([]byte(nil), s.download.Bytes()...)
	name := s.downloadModule
	s.download.Reset()
	s.downloadModule = ""

	s.logger.Info("Download finished", "module", name, "bytes", len(data))

	if name != "" {
		if err := s.loader.Save(ctx, name, data); err != nil {
			s.logger.Error("Download not saved", "module", name, "error", err)
			return
		}
		s.loader.Load(ctx, name)
		return
	}

	s.out.Printf("Loading anonymous Lua chunk\n")

	chunk, err := s.engine.Compile(string(data), anonymousChunkName)
	if err != nil {
		s.out.Printf("Error: %s\n", engine.Message(err))
		return
	}
	res := s.engine.Execute(chunk)
	if !res.OK() {
		s.out.Printf("Error: %s\n", engine.Message(res.Err))
		return
	}
	if s.afterAnonymousChunk != nil {
		s.afterAnonymousChunk()
	}
}
