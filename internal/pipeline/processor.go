// Package pipeline implements the catalog ingestion flow: download the raw
// object, parse and load its rows, embed the labels.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/catalog"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/storage"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/tasks"
)

// requiredColumns are the catalog columns a raw file must declare.
var requiredColumns = []string{"code", "marca", "modelo"}

// knownColumns is every column the parser recognizes.
var knownColumns = map[string]struct{}{
	"code": {}, "marca": {}, "submarca": {}, "modelo": {},
	"segmento": {}, "carroceria": {}, "descripcion": {},
}

// Processor executes one catalog ingestion task end to end.
type Processor struct {
	store    *catalog.Store
	minioCfg config.MinIOConfig
}

// NewProcessor creates a new Processor instance.
func NewProcessor(store *catalog.Store, minioCfg config.MinIOConfig) *Processor {
	return &Processor{
		store:    store,
		minioCfg: minioCfg,
	}
}

// Process drives a version through UPLOADED -> LOADED -> EMBEDDED. It is
// safe to re-deliver: versions already past EMBEDDED are skipped and FAILED
// versions are not retried.
func (p *Processor) Process(ctx context.Context, task tasks.CatalogIngestTask) error {
	log.Infof("[Processor] processing catalog version %s, object: %s", task.VersionID, task.ObjectName)

	version, err := p.store.Version(task.VersionID)
	if err != nil {
		return err
	}
	switch version.State {
	case model.VersionStateEmbedded, model.VersionStateActive:
		log.Infof("[Processor] version %s already in state %s, nothing to do", task.VersionID, version.State)
		return nil
	case model.VersionStateFailed:
		log.Warnf("[Processor] version %s is FAILED, not retrying", task.VersionID)
		return nil
	}

	// 1. Download the raw object and hash it while reading. The checksum is
	// computed over the raw content, not the derived embeddings.
	object, err := storage.GetObject(ctx, p.minioCfg.BucketName, task.ObjectName)
	if err != nil {
		return fmt.Errorf("failed to download catalog object %s: %w", task.ObjectName, err)
	}
	defer object.Close()

	hasher := sha256.New()
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(io.TeeReader(object, hasher))
	if err != nil {
		return fmt.Errorf("failed to read catalog object %s: %w", task.ObjectName, err)
	}
	if size == 0 {
		p.store.Fail(task.VersionID, "catalog object is empty")
		return errors.New("catalog object is empty")
	}
	checksum := fmt.Sprintf("%x", hasher.Sum(nil))
	log.Infof("[Processor] downloaded %d bytes, sha256=%s", size, checksum)

	if task.DeclaredChecksum != "" && checksum != task.DeclaredChecksum {
		// Load proceeds; activation will reject the mismatch before any
		// state change to the currently active version.
		log.Warnf("[Processor] version %s checksum %s does not match declared %s", task.VersionID, checksum, task.DeclaredChecksum)
	}

	// 2. Parse the rows. A schema error fails the version outright; a
	// half-loaded version must never look valid to callers.
	if version.State == model.VersionStateUploaded {
		entries, err := parseCatalogCSV(buf)
		if err != nil {
			p.store.Fail(task.VersionID, err.Error())
			return fmt.Errorf("failed to parse catalog object %s: %w", task.ObjectName, err)
		}
		log.Infof("[Processor] parsed %d catalog rows", len(entries))

		if err := p.store.Load(ctx, task.VersionID, entries, checksum); err != nil {
			return err
		}
	}

	// 3. Embed the structured labels.
	if err := p.store.Embed(ctx, task.VersionID); err != nil {
		return err
	}

	log.Infof("[Processor] version %s ingested successfully", task.VersionID)
	return nil
}

// parseCatalogCSV reads the raw catalog file into entries. The header must
// carry the required columns; unknown columns are a schema error rather
// than silently ignored.
func parseCatalogCSV(r io.Reader) ([]*model.CatalogEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if _, ok := knownColumns[name]; !ok {
			return nil, fmt.Errorf("unknown column %q in catalog header", col)
		}
		index[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q in catalog header", col)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []*model.CatalogEntry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		year, err := strconv.Atoi(field(record, "modelo"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid modelo year %q", line, field(record, "modelo"))
		}

		entries = append(entries, &model.CatalogEntry{
			Code:        field(record, "code"),
			Marca:       field(record, "marca"),
			Submarca:    field(record, "submarca"),
			Modelo:      year,
			Segmento:    field(record, "segmento"),
			Carroceria:  field(record, "carroceria"),
			Descripcion: field(record, "descripcion"),
		})
	}
	return entries, nil
}
