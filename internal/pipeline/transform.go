package pipeline

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/buoy-data-etl/internal/domain"
)

// Transformer adapts a domain.FileDecoder to the pipeline: it delegates file
// selection and stamps each decoded file with a batch ID and decode time.
type Transformer struct {
	decoder domain.FileDecoder
	clock   clockwork.Clock
	newID   func() string
}

// NewTransformer wraps decoder. A nil clock means wall time.
func NewTransformer(decoder domain.FileDecoder, clock clockwork.Clock) *Transformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Transformer{
		decoder: decoder,
		clock:   clock,
		newID:   uuid.NewString,
	}
}

// Select passes through to the decoder's file selection.
func (t *Transformer) Select(link domain.StationLink, files []string) ([]string, error) {
	return t.decoder.Select(link, files)
}

// Transform decodes one file's content into a publishable batch.
func (t *Transformer) Transform(stationID, name string, content []byte) (domain.FileBatch, error) {
	batch, err := t.decoder.Decode(content)
	if err != nil {
		return domain.FileBatch{}, err
	}
	return domain.FileBatch{
		StationID:  stationID,
		SourceFile: name,
		BatchID:    t.newID(),
		DecodedAt:  t.clock.Now(),
		Batch:      batch,
	}, nil
}
