package call

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/satriadi/bellhop/pkg/redact"
)

// Store persists finished call transcripts as JSONL, one file per call
// under the artifacts directory. Each line is a JSON record written with
// the same handler the runtime logs use.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the session transcript. PII redaction applies here, not to
// the in-memory transcript, so the live reply backend sees original text.
func (st *Store) Save(s *Session) (string, error) {
	if s == nil {
		return "", nil
	}
	path := filepath.Join(st.dir, s.ID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("transcript file: %w", err)
	}
	defer f.Close()

	if err := writeRecords(f, s); err != nil {
		return "", err
	}
	return path, nil
}

func writeRecords(w io.Writer, s *Session) error {
	logger := slog.New(slog.NewJSONHandler(w, nil))
	ctx := context.TODO()

	endedAt, cause := s.EndedAt()
	logger.LogAttrs(ctx, slog.LevelInfo, "call",
		slog.String("call_id", s.ID),
		slog.String("direction", string(s.Direction)),
		slog.String("target", redact.Text(s.Target)),
		slog.Time("started_at", s.StartedAt),
		slog.Time("ended_at", endedAt),
		slog.String("end_cause", cause),
	)
	for _, e := range s.Transcript() {
		logger.LogAttrs(ctx, slog.LevelInfo, "entry",
			slog.String("call_id", s.ID),
			slog.String("speaker", e.Speaker),
			slog.String("text", redact.Text(e.Text)),
			slog.Time("at", e.Time),
		)
	}
	return nil
}
